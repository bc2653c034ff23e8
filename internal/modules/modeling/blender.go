package modeling

import (
	"fmt"
	"time"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/procrun"
)

const (
	ExecModeServerHeadless = "server_headless"
	DefaultBlenderPath     = "blender"
	DefaultBlenderWorkdir  = "./blender_work"
	DefaultBlenderTimeout  = 300 * time.Second
	SmokeTimeout           = 60 * time.Second
)

type BlenderConfig struct {
	ExecMode     string        `yaml:"exec_mode"`
	Path         string        `yaml:"path"`
	Workdir      string        `yaml:"workdir"`
	Timeout      time.Duration `yaml:"timeout"`
	ExportFormat string        `yaml:"export_format"`
}

func (c BlenderConfig) Headless() bool { return c.ExecMode == ExecModeServerHeadless }

// ModeMessage explains why a non-headless configuration cannot run jobs.
func (c BlenderConfig) ModeMessage() string {
	return fmt.Sprintf("Blender execution mode is '%s', not '%s'", c.ExecMode, ExecModeServerHeadless)
}

func (c BlenderConfig) RunTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultBlenderTimeout
	}
	return c.Timeout
}

// Command runs scriptPath in background mode with dir as the working directory, so the
// script's relative (//) output paths land next to it.
func (c BlenderConfig) Command(scriptPath, dir string, timeout time.Duration) procrun.Command {
	return procrun.Command{
		Path:    c.Path,
		Args:    []string{"-b", "-P", scriptPath},
		Dir:     dir,
		Timeout: timeout,
	}
}

// TimeoutLabel renders a timeout the way job messages show it: "5min", "90s".
func TimeoutLabel(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dmin", int(d/time.Minute))
	}
	return fmt.Sprintf("%ds", int(d.Round(time.Second)/time.Second))
}

// SmokeScript exports a 20mm cube to smoke_cube.stl in the working directory.
const SmokeScript = `import bpy

bpy.ops.object.select_all(action='SELECT')
bpy.ops.object.delete(use_global=False)

bpy.ops.mesh.primitive_cube_add(size=20, location=(0, 0, 10))
obj = bpy.context.active_object
obj.name = "SmokeCube"

export_path = bpy.path.abspath("//smoke_cube.stl")
bpy.ops.export_mesh.stl(filepath=export_path)

print("OK_EXPORT:", export_path)
`

const (
	SmokeDir        = "smoke_test"
	SmokeScriptFile = "smoke_test.py"
	SmokeOutputFile = "smoke_cube.stl"
)
