package rest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lakeshare/lakeshare/sharing"
)

// maxLineBytes bounds a single NDJSON line. Metadata lines embed the full
// table schema as a string, which can run to megabytes on wide tables.
const maxLineBytes = 16 << 20

type protocolWire struct {
	MinReaderVersion int `json:"minReaderVersion"`
}

type formatWire struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options,omitempty"`
}

type metadataWire struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Format           formatWire        `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
	Version          int64             `json:"version,omitempty"`
	Size             int64             `json:"size,omitempty"`
	NumFiles         int64             `json:"numFiles,omitempty"`
}

type fileWire struct {
	URL                 string            `json:"url"`
	ID                  string            `json:"id"`
	PartitionValues     map[string]string `json:"partitionValues"`
	Size                int64             `json:"size"`
	Stats               string            `json:"stats,omitempty"`
	Version             int64             `json:"version,omitempty"`
	Timestamp           int64             `json:"timestamp,omitempty"`
	ExpirationTimestamp int64             `json:"expirationTimestamp,omitempty"`
}

type endStreamWire struct {
	RefreshToken              string `json:"refreshToken,omitempty"`
	MinURLExpirationTimestamp int64  `json:"minUrlExpirationTimestamp,omitempty"`
}

// actionLine is one NDJSON line of a table query response. Exactly one field
// is set per line.
type actionLine struct {
	Protocol  *protocolWire  `json:"protocol,omitempty"`
	MetaData  *metadataWire  `json:"metaData,omitempty"`
	File      *fileWire      `json:"file,omitempty"`
	Add       *fileWire      `json:"add,omitempty"`
	Remove    *fileWire      `json:"remove,omitempty"`
	CDF       *fileWire      `json:"cdf,omitempty"`
	EndStream *endStreamWire `json:"endStreamAction,omitempty"`
}

// actionStream is the decoded body of a metadata, query, or changes response.
type actionStream struct {
	protocol           *protocolWire
	metadata           *metadataWire
	historicalMetadata []*metadataWire
	files              []*fileWire
	adds               []*fileWire
	removes            []*fileWire
	cdfs               []*fileWire
	refreshToken       string
}

// parseActions decodes an NDJSON action stream. The first metaData line is
// the table metadata; later ones are historical metadata from a change feed
// that spans schema changes.
func parseActions(r io.Reader) (*actionStream, error) {
	stream := &actionStream{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var action actionLine
		if err := json.Unmarshal(line, &action); err != nil {
			return nil, fmt.Errorf("decoding response line: %w", err)
		}
		switch {
		case action.Protocol != nil:
			stream.protocol = action.Protocol
		case action.MetaData != nil:
			if stream.metadata == nil {
				stream.metadata = action.MetaData
			} else {
				stream.historicalMetadata = append(stream.historicalMetadata, action.MetaData)
			}
		case action.File != nil:
			stream.files = append(stream.files, action.File)
		case action.Add != nil:
			stream.adds = append(stream.adds, action.Add)
		case action.Remove != nil:
			stream.removes = append(stream.removes, action.Remove)
		case action.CDF != nil:
			stream.cdfs = append(stream.cdfs, action.CDF)
		case action.EndStream != nil:
			stream.refreshToken = action.EndStream.RefreshToken
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading response stream: %w", err)
	}
	return stream, nil
}

func (s *actionStream) toProtocol() sharing.Protocol {
	if s.protocol == nil {
		return sharing.Protocol{}
	}
	return sharing.Protocol{MinReaderVersion: s.protocol.MinReaderVersion}
}

func (s *actionStream) toMetadata() *sharing.TableMetadata {
	if s.metadata == nil {
		return nil
	}
	return metadataToDomain(s.metadata)
}

func metadataToDomain(m *metadataWire) *sharing.TableMetadata {
	return &sharing.TableMetadata{
		ID:               m.ID,
		Name:             m.Name,
		Description:      m.Description,
		Format:           sharing.Format{Provider: m.Format.Provider, Options: m.Format.Options},
		SchemaString:     m.SchemaString,
		PartitionColumns: m.PartitionColumns,
		Configuration:    m.Configuration,
		Version:          m.Version,
		Size:             m.Size,
		NumFiles:         m.NumFiles,
	}
}

func filesToDomain(files []*fileWire) []sharing.FileAction {
	if len(files) == 0 {
		return nil
	}
	out := make([]sharing.FileAction, 0, len(files))
	for _, f := range files {
		out = append(out, sharing.FileAction{
			URL:                 f.URL,
			ID:                  f.ID,
			PartitionValues:     f.PartitionValues,
			Size:                f.Size,
			Stats:               f.Stats,
			Version:             f.Version,
			Timestamp:           f.Timestamp,
			ExpirationTimestamp: f.ExpirationTimestamp,
		})
	}
	return out
}

func metadataListToDomain(ms []*metadataWire) []*sharing.TableMetadata {
	if len(ms) == 0 {
		return nil
	}
	out := make([]*sharing.TableMetadata, 0, len(ms))
	for _, m := range ms {
		out = append(out, metadataToDomain(m))
	}
	return out
}
