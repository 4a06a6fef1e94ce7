package loader

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/model"
)

const (
	// parallelTangentThreshold is the vertex count above which the averaging
	// pass is split across the pool.
	parallelTangentThreshold = 4096

	// tangentChunkSize is the number of vertices averaged per pool task.
	tangentChunkSize = 1024
)

// generateTangents computes per-vertex tangent and bitangent vectors for
// normal mapping. Each triangle's tangent frame is derived from its UV deltas
// and accumulated onto its three vertices; vertices shared by several
// triangles end up with the average of the adjacent frames. The averaging pass
// runs on the worker pool for large meshes. Triangles with degenerate UVs
// contribute nothing and are skipped.
//
// Parameters:
//   - vertices: the mesh vertices, modified in place
//   - indices: the triangle index list
//   - pool: worker pool for the parallel averaging pass, may be nil
func generateTangents(vertices []model.GPUVertex, indices []uint32, pool worker.DynamicWorkerPool) {
	if len(vertices) == 0 || len(indices) < 3 {
		return
	}

	tangents := make([][3]float32, len(vertices))
	bitangents := make([][3]float32, len(vertices))
	included := make([]uint32, len(vertices))

	// Accumulation writes to shared per-vertex slots, so it stays serial; the
	// arithmetic per triangle is light.
	for tri := 0; tri+2 < len(indices); tri += 3 {
		i0, i1, i2 := indices[tri], indices[tri+1], indices[tri+2]
		v0, v1, v2 := &vertices[i0], &vertices[i1], &vertices[i2]

		edge1 := common.Sub3(v1.Position, v0.Position)
		edge2 := common.Sub3(v2.Position, v0.Position)
		du1 := v1.TexCoord[0] - v0.TexCoord[0]
		dv1 := v1.TexCoord[1] - v0.TexCoord[1]
		du2 := v2.TexCoord[0] - v0.TexCoord[0]
		dv2 := v2.TexCoord[1] - v0.TexCoord[1]

		det := du1*dv2 - du2*dv1
		if det == 0 {
			continue
		}
		r := 1.0 / det

		// Solving edge1 = du1*T + dv1*B, edge2 = du2*T + dv2*B for T and B.
		tangent := common.Scale3(
			common.Sub3(common.Scale3(edge1, dv2), common.Scale3(edge2, dv1)), r)
		bitangent := common.Scale3(
			common.Sub3(common.Scale3(edge2, du1), common.Scale3(edge1, du2)), r)

		for _, idx := range []uint32{i0, i1, i2} {
			tangents[idx] = common.Add3(tangents[idx], tangent)
			bitangents[idx] = common.Add3(bitangents[idx], bitangent)
			included[idx]++
		}
	}

	average := func(start, end int) {
		for i := start; i < end; i++ {
			n := included[i]
			if n == 0 {
				continue
			}
			inv := 1.0 / float32(n)
			vertices[i].Tangent = common.Scale3(tangents[i], inv)
			vertices[i].Bitangent = common.Scale3(bitangents[i], inv)
		}
	}

	if pool == nil || len(vertices) < parallelTangentThreshold {
		average(0, len(vertices))
		return
	}

	// Chunks write to disjoint vertex ranges, so no synchronization beyond the
	// wait group is needed.
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(vertices); start += tangentChunkSize {
		end := min(start+tangentChunkSize, len(vertices))
		wg.Add(1)
		chunkStart, chunkEnd := start, end
		id := taskID
		taskID++
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				average(chunkStart, chunkEnd)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
