// Package devcontainer normalizes container-based dev-environment descriptors
// into workspace specifications.
package devcontainer

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"vortex/internal/errors"
	"vortex/internal/types"
)

// Descriptor is the recognized subset of a devcontainer.json document.
// Fields vortex does not interpret are retained in Unknown so nothing is
// silently dropped on import.
type Descriptor struct {
	Name              string
	Image             string
	DockerComposeFile string
	ForwardPorts      []PortForward
	PortsAttributes   map[string]PortAttributes
	PostCreateCommand string
	PostStartCommand  string
	Mounts            []string
	ContainerEnv      map[string]string
	WorkspaceFolder   string
	RemoteUser        string

	// Customizations is editor metadata, preserved verbatim
	Customizations json.RawMessage

	// Unknown holds every unrecognized top-level field verbatim
	Unknown map[string]json.RawMessage
}

// PortForward is one forwardPorts entry. Host is zero when the entry
// declared only a guest port; "host:guest" strings carry both sides.
type PortForward struct {
	Host  int
	Guest int
}

// PortAttributes carries per-port overrides from portsAttributes
type PortAttributes struct {
	Label    string `json:"label"`
	HostPort int    `json:"hostPort"`
}

// ParseDescriptor reads a devcontainer.json file. The format permits comments
// and trailing commas, so the bytes pass through a JSONC translation first.
func ParseDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(errors.ErrFileRead, "failed to read descriptor", err)
	}
	return parseDescriptorBytes(jsonc.ToJSON(data))
}

func parseDescriptorBytes(data []byte) (*Descriptor, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.ImportIncomplete("descriptor is not valid JSON: " + err.Error())
	}

	d := &Descriptor{Unknown: make(map[string]json.RawMessage)}
	for key, value := range raw {
		var err error
		switch key {
		case "name":
			err = json.Unmarshal(value, &d.Name)
		case "image":
			err = json.Unmarshal(value, &d.Image)
		case "dockerComposeFile":
			err = unmarshalFirstString(value, &d.DockerComposeFile)
		case "forwardPorts":
			d.ForwardPorts, err = unmarshalPorts(value)
		case "portsAttributes":
			err = json.Unmarshal(value, &d.PortsAttributes)
		case "postCreateCommand":
			err = unmarshalCommand(value, &d.PostCreateCommand)
		case "postStartCommand":
			err = unmarshalCommand(value, &d.PostStartCommand)
		case "mounts":
			err = json.Unmarshal(value, &d.Mounts)
		case "containerEnv":
			err = json.Unmarshal(value, &d.ContainerEnv)
		case "workspaceFolder":
			err = json.Unmarshal(value, &d.WorkspaceFolder)
		case "remoteUser":
			err = json.Unmarshal(value, &d.RemoteUser)
		case "customizations":
			d.Customizations = append(json.RawMessage(nil), value...)
		default:
			d.Unknown[key] = append(json.RawMessage(nil), value...)
		}
		if err != nil {
			return nil, errors.ImportIncomplete("descriptor field " + key + ": " + err.Error())
		}
	}
	return d, nil
}

// unmarshalPorts accepts the forwardPorts mix of numbers and strings. A
// bare number or numeric string declares a guest port; a "host:guest"
// string carries both sides.
func unmarshalPorts(value json.RawMessage) ([]PortForward, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, err
	}
	ports := make([]PortForward, 0, len(entries))
	for _, e := range entries {
		var n int
		if err := json.Unmarshal(e, &n); err == nil {
			ports = append(ports, PortForward{Guest: n})
			continue
		}
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return nil, err
		}
		parts := strings.SplitN(s, ":", 2)
		guest, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return nil, err
		}
		pf := PortForward{Guest: guest}
		if len(parts) == 2 {
			host, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, err
			}
			pf.Host = host
		}
		ports = append(ports, pf)
	}
	return ports, nil
}

// unmarshalCommand accepts either a string or an argv array
func unmarshalCommand(value json.RawMessage, out *string) error {
	if err := json.Unmarshal(value, out); err == nil {
		return nil
	}
	var argv []string
	if err := json.Unmarshal(value, &argv); err != nil {
		return err
	}
	*out = strings.Join(argv, " ")
	return nil
}

// unmarshalFirstString accepts a string or an array of strings, keeping the
// first entry
func unmarshalFirstString(value json.RawMessage, out *string) error {
	if err := json.Unmarshal(value, out); err == nil {
		return nil
	}
	var many []string
	if err := json.Unmarshal(value, &many); err != nil {
		return err
	}
	if len(many) > 0 {
		*out = many[0]
	}
	return nil
}

// ParseMount converts a devcontainer mount string
// (source=/a,target=/b,type=bind) into a volume mount.
func ParseMount(mount string) (types.VolumeMount, bool) {
	var vm types.VolumeMount
	for _, part := range strings.Split(mount, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "source", "src":
			vm.HostPath = kv[1]
		case "target", "dst":
			vm.GuestPath = kv[1]
		}
	}
	return vm, vm.HostPath != "" && vm.GuestPath != ""
}
