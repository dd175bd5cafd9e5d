package drawlist

import "fmt"

// DrawList accumulates the commands and vertex/index payload for exactly
// one frame.
//
// Vertex and index arrays are append-only; commands reference ranges of
// them by element offset. The renderer copies the arrays into GPU buffers
// and executes the commands strictly in order.
//
// DrawList is not safe for concurrent use.
type DrawList struct {
	commands   []Command
	vertices2D []Vertex2D
	vertices3D []Vertex3D
	indices    []uint32
}

// New creates an empty DrawList with pre-allocated capacity.
func New() *DrawList {
	return &DrawList{
		commands:   make([]Command, 0, 64),
		vertices2D: make([]Vertex2D, 0, 1024),
		indices:    make([]uint32, 0, 1024),
	}
}

// AddCommand appends a command. A nil command is ignored.
func (l *DrawList) AddCommand(cmd Command) {
	if cmd == nil {
		return
	}
	l.commands = append(l.commands, cmd)
}

// Commands returns the ordered command sequence.
// The returned slice must not be modified.
func (l *DrawList) Commands() []Command { return l.commands }

// CommandCount returns the number of recorded commands.
func (l *DrawList) CommandCount() int { return len(l.commands) }

// AddVertex2D appends a 2D vertex and returns its index.
func (l *DrawList) AddVertex2D(v Vertex2D) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.vertices2D))
	l.vertices2D = append(l.vertices2D, v)
	return first
}

// AddVertices2D appends 2D vertices and returns the index of the first one.
func (l *DrawList) AddVertices2D(vs ...Vertex2D) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.vertices2D))
	l.vertices2D = append(l.vertices2D, vs...)
	return first
}

// Vertices2D returns the 2D vertex array.
func (l *DrawList) Vertices2D() []Vertex2D { return l.vertices2D }

// Vertex2DCount returns the number of 2D vertices.
func (l *DrawList) Vertex2DCount() int { return len(l.vertices2D) }

// Vertex2DData returns the 2D vertices as contiguous bytes, or nil when
// there are none. The bytes alias the list's storage.
func (l *DrawList) Vertex2DData() []byte { return sliceBytes(l.vertices2D) }

// Vertex2DDataSize returns the byte size of the 2D vertex array.
func (l *DrawList) Vertex2DDataSize() int { return len(l.vertices2D) * Vertex2DSize }

// AddVertex3D appends a 3D vertex and returns its index.
func (l *DrawList) AddVertex3D(v Vertex3D) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.vertices3D))
	l.vertices3D = append(l.vertices3D, v)
	return first
}

// AddVertices3D appends 3D vertices and returns the index of the first one.
func (l *DrawList) AddVertices3D(vs ...Vertex3D) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.vertices3D))
	l.vertices3D = append(l.vertices3D, vs...)
	return first
}

// Vertices3D returns the 3D vertex array.
func (l *DrawList) Vertices3D() []Vertex3D { return l.vertices3D }

// Vertex3DCount returns the number of 3D vertices.
func (l *DrawList) Vertex3DCount() int { return len(l.vertices3D) }

// Vertex3DData returns the 3D vertices as contiguous bytes, or nil.
func (l *DrawList) Vertex3DData() []byte { return sliceBytes(l.vertices3D) }

// Vertex3DDataSize returns the byte size of the 3D vertex array.
func (l *DrawList) Vertex3DDataSize() int { return len(l.vertices3D) * Vertex3DSize }

// AddIndex appends an index and returns its position in the index array.
func (l *DrawList) AddIndex(i uint32) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.indices))
	l.indices = append(l.indices, i)
	return first
}

// AddIndices appends indices and returns the position of the first one.
func (l *DrawList) AddIndices(is ...uint32) uint32 {
	// #nosec G115 -- list size is bounded by available memory, well under uint32 max
	first := uint32(len(l.indices))
	l.indices = append(l.indices, is...)
	return first
}

// Indices returns the index array.
func (l *DrawList) Indices() []uint32 { return l.indices }

// IndexCount returns the number of indices.
func (l *DrawList) IndexCount() int { return len(l.indices) }

// IndexData returns the indices as contiguous bytes, or nil.
func (l *DrawList) IndexData() []byte { return sliceBytes(l.indices) }

// IndexDataSize returns the byte size of the index array.
func (l *DrawList) IndexDataSize() int { return len(l.indices) * IndexSize }

// Reset clears the list for reuse, keeping allocated capacity.
func (l *DrawList) Reset() {
	clear(l.commands)
	l.commands = l.commands[:0]
	l.vertices2D = l.vertices2D[:0]
	l.vertices3D = l.vertices3D[:0]
	l.indices = l.indices[:0]
}

// IsEmpty reports whether the list holds no commands and no payload.
func (l *DrawList) IsEmpty() bool {
	return len(l.commands) == 0 && len(l.vertices2D) == 0 &&
		len(l.vertices3D) == 0 && len(l.indices) == 0
}

// ReserveCommands grows command capacity to hold at least n more commands.
func (l *DrawList) ReserveCommands(n int) { l.commands = reserve(l.commands, n) }

// ReserveVertices2D grows 2D vertex capacity.
func (l *DrawList) ReserveVertices2D(n int) { l.vertices2D = reserve(l.vertices2D, n) }

// ReserveVertices3D grows 3D vertex capacity.
func (l *DrawList) ReserveVertices3D(n int) { l.vertices3D = reserve(l.vertices3D, n) }

// ReserveIndices grows index capacity.
func (l *DrawList) ReserveIndices(n int) { l.indices = reserve(l.indices, n) }

func reserve[T any](s []T, n int) []T {
	if n <= 0 || cap(s)-len(s) >= n {
		return s
	}
	grown := make([]T, len(s), len(s)+n)
	copy(grown, s)
	return grown
}

// ListStats summarizes the contents of a DrawList.
type ListStats struct {
	Commands   int
	Draws      int
	Vertices2D int
	Vertices3D int
	Indices    int
}

// Stats counts the list's commands and payload.
func (l *DrawList) Stats() ListStats {
	s := ListStats{
		Commands:   len(l.commands),
		Vertices2D: len(l.vertices2D),
		Vertices3D: len(l.vertices3D),
		Indices:    len(l.indices),
	}
	for _, cmd := range l.commands {
		switch cmd.Type() {
		case CmdDraw2D, CmdDraw3D:
			s.Draws++
		}
	}
	return s
}

// String returns a short summary, useful in logs.
func (s ListStats) String() string {
	return fmt.Sprintf("commands=%d draws=%d v2d=%d v3d=%d idx=%d",
		s.Commands, s.Draws, s.Vertices2D, s.Vertices3D, s.Indices)
}

// Validate checks that every draw command references vertex and index
// ranges inside the list's arrays.
func (l *DrawList) Validate() error {
	for i, cmd := range l.commands {
		switch c := cmd.(type) {
		case Draw2D:
			if err := checkRange(i, c.VertexOffset, c.VertexCount, len(l.vertices2D), "2D vertex"); err != nil {
				return err
			}
			if err := checkRange(i, c.IndexOffset, c.IndexCount, len(l.indices), "index"); err != nil {
				return err
			}
		case Draw3D:
			if err := checkRange(i, c.VertexOffset, c.VertexCount, len(l.vertices3D), "3D vertex"); err != nil {
				return err
			}
			if err := checkRange(i, c.IndexOffset, c.IndexCount, len(l.indices), "index"); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkRange(cmd int, offset, count uint32, length int, what string) error {
	if count == 0 {
		return nil
	}
	if uint64(offset)+uint64(count) > uint64(length) {
		return fmt.Errorf("drawlist: command %d: %s range [%d, %d) exceeds %d",
			cmd, what, offset, uint64(offset)+uint64(count), length)
	}
	return nil
}
