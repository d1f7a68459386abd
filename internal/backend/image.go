package backend

import "strings"

// NormalizeImageName expands short image references into fully
// qualified registry references, which krunvm/buildah require.
func NormalizeImageName(image string) string {
	switch image {
	case "alpine", "ubuntu", "debian":
		return "docker.io/library/" + image + ":latest"
	}
	if strings.Contains(image, "/") {
		return image
	}
	if strings.Contains(image, ":") {
		return "docker.io/library/" + image
	}
	return "docker.io/library/" + image + ":latest"
}
