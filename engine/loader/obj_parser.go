package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kestrel3d/kestrel/common"
)

// objFace is one triangle corner reference: 1-based indices into the position,
// texcoord, and normal lists. Zero means the component was absent.
type objFaceIndex struct {
	position int
	texCoord int
	normal   int
}

// objFile is the raw CPU-side result of parsing a Wavefront OBJ stream.
type objFile struct {
	mtlLibs   []string
	positions [][3]float32
	texCoords [][2]float32
	normals   [][3]float32

	// triangles holds face corners in groups of three, fan-triangulated for
	// polygons with more than three corners.
	triangles []objFaceIndex

	// triangleMaterials names the active usemtl material per triangle, parallel
	// to triangles at one entry per three corners. Empty string when no usemtl
	// was active.
	triangleMaterials []string
}

// parseOBJ reads a Wavefront OBJ stream. Only the subset needed for static lit
// meshes is handled: v, vt, vn, f, usemtl, and mtllib. Grouping and smoothing
// statements are ignored.
//
// Parameters:
//   - r: the OBJ stream
//
// Returns:
//   - *objFile: the parsed geometry
//   - error: error if a statement is malformed
func parseOBJ(r io.Reader) (*objFile, error) {
	obj := &objFile{}
	currentMaterial := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		keyword, args := fields[0], fields[1:]

		switch keyword {
		case "v":
			p, err := parseFloats3(args)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: invalid vertex: %w", lineNo, err)
			}
			obj.positions = append(obj.positions, p)
		case "vt":
			if len(args) < 2 {
				return nil, fmt.Errorf("obj line %d: texcoord needs 2 components", lineNo)
			}
			u, err := parseFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: invalid texcoord: %w", lineNo, err)
			}
			v, err := parseFloat(args[1])
			if err != nil {
				return nil, fmt.Errorf("obj line %d: invalid texcoord: %w", lineNo, err)
			}
			obj.texCoords = append(obj.texCoords, [2]float32{u, v})
		case "vn":
			n, err := parseFloats3(args)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: invalid normal: %w", lineNo, err)
			}
			obj.normals = append(obj.normals, n)
		case "f":
			if len(args) < 3 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 corners", lineNo)
			}
			corners := make([]objFaceIndex, len(args))
			for i, arg := range args {
				corner, err := parseFaceCorner(arg, obj)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				corners[i] = corner
			}
			// Fan triangulation for quads and larger polygons.
			for i := 1; i+1 < len(corners); i++ {
				obj.triangles = append(obj.triangles, corners[0], corners[i], corners[i+1])
				obj.triangleMaterials = append(obj.triangleMaterials, currentMaterial)
			}
		case "usemtl":
			if len(args) > 0 {
				currentMaterial = args[0]
			}
		case "mtllib":
			obj.mtlLibs = append(obj.mtlLibs, args...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("obj: read failed: %w", err)
	}
	return obj, nil
}

// parseFaceCorner parses one face corner reference of the form v, v/vt,
// v//vn, or v/vt/vn. Negative indices count back from the end of the
// respective list, per the OBJ specification.
func parseFaceCorner(arg string, obj *objFile) (objFaceIndex, error) {
	parts := strings.Split(arg, "/")
	var corner objFaceIndex

	resolve := func(raw string, count int) (int, error) {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid face index %q: %w", raw, err)
		}
		if idx < 0 {
			idx = count + idx + 1
		}
		if idx < 1 || idx > count {
			return 0, fmt.Errorf("face index %d out of range (1..%d)", idx, count)
		}
		return idx, nil
	}

	idx, err := resolve(parts[0], len(obj.positions))
	if err != nil {
		return corner, err
	}
	corner.position = idx

	if len(parts) > 1 && parts[1] != "" {
		idx, err := resolve(parts[1], len(obj.texCoords))
		if err != nil {
			return corner, err
		}
		corner.texCoord = idx
	}
	if len(parts) > 2 && parts[2] != "" {
		idx, err := resolve(parts[2], len(obj.normals))
		if err != nil {
			return corner, err
		}
		corner.normal = idx
	}
	return corner, nil
}

// parseMTL reads a Wavefront MTL stream into imported material records.
// Texture paths are recorded as written; the caller resolves them against the
// OBJ's directory and loads the bytes.
//
// Parameters:
//   - r: the MTL stream
//
// Returns:
//   - []common.ImportedMaterial: materials in declaration order
//   - error: error if a statement is malformed
func parseMTL(r io.Reader) ([]common.ImportedMaterial, error) {
	var materials []common.ImportedMaterial
	var current *common.ImportedMaterial

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		keyword, args := fields[0], fields[1:]

		if keyword == "newmtl" {
			if len(args) < 1 {
				return nil, fmt.Errorf("mtl line %d: newmtl needs a name", lineNo)
			}
			materials = append(materials, common.ImportedMaterial{
				Name:      args[0],
				Ambient:   [3]float32{1, 1, 1},
				Diffuse:   [3]float32{1, 1, 1},
				Shininess: 32,
			})
			current = &materials[len(materials)-1]
			continue
		}
		if current == nil {
			continue
		}

		switch keyword {
		case "Ka":
			c, err := parseFloats3(args)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: invalid Ka: %w", lineNo, err)
			}
			current.Ambient = c
		case "Kd":
			c, err := parseFloats3(args)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: invalid Kd: %w", lineNo, err)
			}
			current.Diffuse = c
		case "Ks":
			c, err := parseFloats3(args)
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: invalid Ks: %w", lineNo, err)
			}
			current.Specular = c
		case "Ns":
			if len(args) < 1 {
				return nil, fmt.Errorf("mtl line %d: Ns needs a value", lineNo)
			}
			ns, err := parseFloat(args[0])
			if err != nil {
				return nil, fmt.Errorf("mtl line %d: invalid Ns: %w", lineNo, err)
			}
			current.Shininess = ns
		case "map_Kd":
			if len(args) > 0 {
				current.DiffuseTexturePath = args[len(args)-1]
			}
		case "map_Bump", "map_bump", "bump", "norm":
			if len(args) > 0 {
				current.NormalTexturePath = args[len(args)-1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mtl: read failed: %w", err)
	}
	return materials, nil
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

func parseFloats3(args []string) ([3]float32, error) {
	var out [3]float32
	if len(args) < 3 {
		return out, fmt.Errorf("need 3 components, got %d", len(args))
	}
	for i := range 3 {
		f, err := parseFloat(args[i])
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}
