package pipeline

// Dimension is one ordered input list for task expansion, e.g. role
// titles or locations. Name becomes the payload key on every descriptor.
type Dimension struct {
	Name   string
	Values []string
}

// Expand computes the Cartesian product of the supplied dimensions and
// emits one descriptor per combination. Expansion is pure: no I/O, no
// side effects, and the output order equals the iteration order of the
// input lists with the first dimension as the outer loop. An empty
// dimension yields no descriptors.
func Expand(kind string, depth ReasoningDepth, dims ...Dimension) []TaskDescriptor {
	if len(dims) == 0 {
		return nil
	}

	total := 1
	for _, dim := range dims {
		total *= len(dim.Values)
	}
	if total == 0 {
		return nil
	}

	tasks := make([]TaskDescriptor, 0, total)
	indices := make([]int, len(dims))

	for {
		payload := make(map[string]string, len(dims))
		for i, dim := range dims {
			payload[dim.Name] = dim.Values[indices[i]]
		}

		tasks = append(tasks, TaskDescriptor{
			ID:      canonicalID(kind, payload),
			Kind:    kind,
			Payload: payload,
			Depth:   depth,
		})

		// Advance the innermost index first; carrying into the outer
		// dimensions keeps the first dimension as the outer loop.
		carry := len(dims) - 1
		for carry >= 0 {
			indices[carry]++
			if indices[carry] < len(dims[carry].Values) {
				break
			}
			indices[carry] = 0
			carry--
		}
		if carry < 0 {
			return tasks
		}
	}
}

// ExpandCapped expands a single dimension and truncates the result to
// the cap, keeping first-seen order. Secondary fan-outs (derived-entity
// research) go through here so a long tail of companies never explodes
// the run.
func ExpandCapped(kind string, depth ReasoningDepth, dim Dimension, limit int) []TaskDescriptor {
	tasks := Expand(kind, depth, dim)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}
