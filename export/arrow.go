/*
	Package export writes simulation state as Apache Arrow IPC streams, locally or to
	cloud buckets, for analysis outside the simulator.
*/
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
	"github.com/janelia-flyem/cardiowave/engine"
)

var stateFields = []arrow.Field{
	{Name: "index", Type: arrow.PrimitiveTypes.Int32},
	{Name: "x", Type: arrow.PrimitiveTypes.Int32},
	{Name: "y", Type: arrow.PrimitiveTypes.Int32},
	{Name: "z", Type: arrow.PrimitiveTypes.Int32},
	{Name: "u", Type: arrow.PrimitiveTypes.Float32},
	{Name: "v", Type: arrow.PrimitiveTypes.Float32},
	{Name: "w", Type: arrow.PrimitiveTypes.Float32},
	{Name: "d", Type: arrow.PrimitiveTypes.Float32},
}

// Row is one exported cell.
type Row struct {
	Index      int32
	Coord      cardio.Point3d
	U, V, W, D float32
}

func stateSchema(dom *domain.Domain, step uint64) *arrow.Schema {
	size := dom.Geometry().Size()
	md := arrow.NewMetadata(
		[]string{"step", "nx", "ny", "nz"},
		[]string{
			strconv.FormatUint(step, 10),
			strconv.Itoa(int(size[0])), strconv.Itoa(int(size[1])), strconv.Itoa(int(size[2])),
		},
	)
	return arrow.NewSchema(stateFields, &md)
}

// WriteArrow writes one record batch holding every cell of the domain with its grid
// coordinate and state.  states is indexed by compact index.
func WriteArrow(w io.Writer, dom *domain.Domain, step uint64, states []engine.State) error {
	if len(states) != dom.Len() {
		return fmt.Errorf("cannot export %d cell states for domain with %d active cells", len(states), dom.Len())
	}
	pool := memory.NewGoAllocator()
	schema := stateSchema(dom, step)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	indexBuilder := builder.Field(0).(*array.Int32Builder)
	coordBuilders := [3]*array.Int32Builder{
		builder.Field(1).(*array.Int32Builder),
		builder.Field(2).(*array.Int32Builder),
		builder.Field(3).(*array.Int32Builder),
	}
	uBuilder := builder.Field(4).(*array.Float32Builder)
	vBuilder := builder.Field(5).(*array.Float32Builder)
	wBuilder := builder.Field(6).(*array.Float32Builder)
	dBuilder := builder.Field(7).(*array.Float32Builder)

	n := len(states)
	indexBuilder.Reserve(n)
	for _, b := range coordBuilders {
		b.Reserve(n)
	}
	for i, s := range states {
		p := dom.GridCoordinateOf(i)
		indexBuilder.Append(int32(i))
		for dim, b := range coordBuilders {
			b.Append(p[dim])
		}
		uBuilder.Append(float32(s.U))
		vBuilder.Append(float32(s.V))
		wBuilder.Append(float32(s.W))
		dBuilder.Append(float32(s.D))
	}

	record := builder.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("unable to write arrow record: %v", err)
	}
	return writer.Close()
}

// ReadArrow reads a stream written by WriteArrow.
func ReadArrow(r io.Reader) (step uint64, rows []Row, err error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return 0, nil, err
	}
	defer reader.Release()

	md := reader.Schema().Metadata()
	if i := md.FindKey("step"); i >= 0 {
		if step, err = strconv.ParseUint(md.Values()[i], 10, 64); err != nil {
			return 0, nil, fmt.Errorf("bad step in arrow metadata: %v", err)
		}
	}
	fields := reader.Schema().Fields()
	if len(fields) != len(stateFields) {
		return 0, nil, fmt.Errorf("arrow stream has %d columns, expected %d", len(fields), len(stateFields))
	}
	for i, field := range fields {
		if field.Name != stateFields[i].Name || !arrow.TypeEqual(field.Type, stateFields[i].Type) {
			return 0, nil, fmt.Errorf("arrow column %d is %s, expected %s", i, field, stateFields[i])
		}
	}
	for reader.Next() {
		record := reader.Record()
		index := record.Column(0).(*array.Int32).Int32Values()
		xs := record.Column(1).(*array.Int32).Int32Values()
		ys := record.Column(2).(*array.Int32).Int32Values()
		zs := record.Column(3).(*array.Int32).Int32Values()
		us := record.Column(4).(*array.Float32).Float32Values()
		vs := record.Column(5).(*array.Float32).Float32Values()
		ws := record.Column(6).(*array.Float32).Float32Values()
		ds := record.Column(7).(*array.Float32).Float32Values()
		for i := range index {
			rows = append(rows, Row{
				Index: index[i],
				Coord: cardio.Point3d{xs[i], ys[i], zs[i]},
				U:     us[i], V: vs[i], W: ws[i], D: ds[i],
			})
		}
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return 0, nil, err
	}
	return step, rows, nil
}
