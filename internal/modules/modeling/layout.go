package modeling

import (
	"fmt"
	"path/filepath"
)

const (
	ExportFormatSTL = "stl"
	RenderFormatPNG = "png"
	ScriptExt       = "py"
)

// ProjectWorkdir is the per-project directory scripts are written to and the tool runs in.
func ProjectWorkdir(root, projectID string) string {
	return filepath.Join(root, projectID)
}

func OutputFileName(projectID, format string) string {
	if format == "" {
		format = ExportFormatSTL
	}
	return fmt.Sprintf("output_%s.%s", projectID, format)
}

func RenderFileName(projectID string) string {
	return fmt.Sprintf("render_%s.%s", projectID, RenderFormatPNG)
}

func ScriptFileName(version int) string {
	return fmt.Sprintf("script_v%d.%s", version, ScriptExt)
}

// ContentTypeFor maps the export format to the MIME type registered on the asset.
func ContentTypeFor(format string) string {
	switch format {
	case "stl":
		return "model/stl"
	case "obj":
		return "model/obj"
	case "glb":
		return "model/gltf-binary"
	case "png":
		return "image/png"
	}
	return "application/octet-stream"
}
