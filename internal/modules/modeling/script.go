package modeling

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"
)

type scriptInput struct {
	BuildParams
	ProjectID  string
	OutputFile string
	RenderFile string
}

var scriptFuncs = template.FuncMap{"py": pyFloat}

var blenderScript = template.Must(template.New("blender").Funcs(scriptFuncs).Parse(`#!/usr/bin/env blender --python
"""
Parametric base plate, generated for project {{.ProjectID}}.

  length          {{py .Length}}
  width           {{py .Width}}
  thickness       {{py .Thickness}}
  hole diameter   {{py .HoleDiameter}}
  hole count      {{.HoleCount}}
  ring radius     {{py .RingRadius}}
  fillet radius   {{py .FilletRadius}}
"""

import math

import bpy

L = {{py .Length}}
W = {{py .Width}}
T = {{py .Thickness}}
HOLE_D = {{py .HoleDiameter}}
HOLE_COUNT = {{.HoleCount}}
RING_R = {{py .RingRadius}}
FILLET_R = {{py .FilletRadius}}

print(f"[build] plate L={L} W={W} T={T}")

# scene reset
bpy.ops.object.select_all(action='SELECT')
bpy.ops.object.delete(use_global=False)
for mesh in list(bpy.data.meshes):
    if mesh.users == 0:
        bpy.data.meshes.remove(mesh)

# base volume L x W x T resting on z=0
bpy.ops.mesh.primitive_cube_add(size=1, location=(0, 0, T / 2))
plate = bpy.context.active_object
plate.name = "BasePlate"
plate.scale = (L / 2, W / 2, T / 2)
bpy.ops.object.transform_apply(location=False, rotation=False, scale=True)
{{if gt .HoleCount 0}}
# {{.HoleCount}} through holes, {{printf "%.6g" .HoleAngle}} degrees apart on the ring
cutters = []
for i in range(HOLE_COUNT):
    angle = 2 * math.pi * i / HOLE_COUNT
    bpy.ops.mesh.primitive_cylinder_add(
        radius=HOLE_D / 2,
        depth=T * 3,
        location=(math.cos(angle) * RING_R, math.sin(angle) * RING_R, T / 2),
    )
    cutter = bpy.context.active_object
    cutter.name = f"HoleCutter_{i}"
    cutters.append(cutter)

bpy.ops.object.select_all(action='DESELECT')
for cutter in cutters:
    cutter.select_set(True)
bpy.context.view_layer.objects.active = cutters[0]
bpy.ops.object.join()
holes = bpy.context.active_object

bpy.ops.object.select_all(action='DESELECT')
plate.select_set(True)
bpy.context.view_layer.objects.active = plate
boolean = plate.modifiers.new(name="Holes", type='BOOLEAN')
boolean.operation = 'DIFFERENCE'
boolean.object = holes
bpy.ops.object.modifier_apply(modifier=boolean.name)

bpy.ops.object.select_all(action='DESELECT')
holes.select_set(True)
bpy.ops.object.delete(use_global=False)
{{end}}{{if gt .FilletRadius 0.0}}
# edge fillet
bpy.context.view_layer.objects.active = plate
bevel = plate.modifiers.new(name="Fillet", type='BEVEL')
bevel.width = FILLET_R
bevel.segments = 3
bevel.limit_method = 'ANGLE'
bpy.ops.object.modifier_apply(modifier=bevel.name)
{{end}}
# primary output
output_path = bpy.path.abspath("//{{.OutputFile}}")
print(f"[build] export {output_path}")
bpy.ops.export_mesh.stl(filepath=output_path, use_selection=False)

# preview render
scene = bpy.context.scene
scene.render.engine = 'BLENDER_EEVEE'
scene.render.resolution_x = 1920
scene.render.resolution_y = 1080
scene.render.film_transparent = True

bpy.ops.object.camera_add(location=(L * 1.5, -W * 1.5, L * 0.8))
camera = bpy.context.active_object
camera.rotation_euler = (math.radians(60), 0, math.radians(45))
scene.camera = camera

bpy.ops.object.light_add(type='SUN', location=(L, -W, L * 2))
bpy.context.active_object.data.energy = 3.0

scene.render.filepath = bpy.path.abspath("//{{.RenderFile}}")
bpy.ops.render.render(write_still=True)
print("[build] done")
`))

// HoleAngle is the angular pitch of the hole pattern in degrees, 0 without holes.
func (p BuildParams) HoleAngle() float64 {
	if p.HoleCount <= 0 {
		return 0
	}
	return 360.0 / float64(p.HoleCount)
}

// RenderBlenderScript produces the Blender Python recipe for p. It is pure: the same inputs
// always give the same text.
func RenderBlenderScript(p BuildParams, projectID string) string {
	var b bytes.Buffer
	in := scriptInput{
		BuildParams: p,
		ProjectID:   projectID,
		OutputFile:  OutputFileName(projectID, ExportFormatSTL),
		RenderFile:  RenderFileName(projectID),
	}
	if err := blenderScript.Execute(&b, in); err != nil {
		panic(err) // template bug
	}
	return b.String()
}

// pyFloat renders v as a Python float literal ("120.0", "9.6").
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
