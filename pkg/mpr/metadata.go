package mpr

import (
	"time"

	"github.com/rowpack/mpr/pkg/intuit"
	"github.com/rowpack/mpr/pkg/schema"
	"github.com/rowpack/mpr/pkg/stats"
)

// Provenance records where the rows came from
type Provenance struct {
	Name      string    `msgpack:"name,omitempty"`
	URL       string    `msgpack:"url,omitempty"`
	FetchedAt time.Time `msgpack:"fetched_at,omitempty"`
}

// About describes the container itself
type About struct {
	CreatedAt time.Time `msgpack:"created_at"`
	Generator string    `msgpack:"generator,omitempty"`
	Title     string    `msgpack:"title,omitempty"`
}

// Process records the state of the load that produced the container.
// Finalized flips to true only once the full pipeline, stats included, has
// completed; partially written or stats-less containers stay false.
type Process struct {
	Finalized bool      `msgpack:"finalized"`
	LoadedAt  time.Time `msgpack:"loaded_at,omitempty"`
	Warnings  []string  `msgpack:"warnings,omitempty"`
}

// Metadata is the dictionary stored after the row block. It is encoded as
// plain msgpack, never compressed, so reading it costs one seek and one
// bounded read with no decompressor involved.
type Metadata struct {
	Version  int            `msgpack:"version"`
	Schema   *schema.Schema `msgpack:"schema,omitempty"`
	RowCount int64          `msgpack:"row_count"`

	// RowSpec records where headers and data sat in the source file. Row
	// indices refer to the source, not the row block; the block holds only
	// data rows.
	RowSpec intuit.RowSpec `msgpack:"row_spec"`

	// Comments preserves the text of banner rows found above the headers
	Comments []string `msgpack:"comments,omitempty"`

	Stats   []stats.ColumnStats `msgpack:"stats,omitempty"`
	Source  Provenance          `msgpack:"source,omitempty"`
	About   About               `msgpack:"about,omitempty"`
	Process Process             `msgpack:"process"`
}

// NewMetadata returns metadata initialized for a fresh container
func NewMetadata() *Metadata {
	return &Metadata{
		Version: int(Version),
		RowSpec: intuit.RowSpec{DataEnd: -1},
		About: About{
			CreatedAt: time.Now().UTC(),
			Generator: "mpr",
		},
	}
}

// Warn appends a load warning to the process record
func (m *Metadata) Warn(msg string) {
	m.Process.Warnings = append(m.Process.Warnings, msg)
}

// Width returns the schema width, 0 when no schema is set
func (m *Metadata) Width() int {
	if m.Schema == nil {
		return 0
	}
	return m.Schema.Width()
}
