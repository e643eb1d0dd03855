package project

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/dbsync/internal/model"
)

// Format is a data map file encoding
type Format string

// Supported map formats
const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

var mapSuffixes = []struct {
	suffix string
	format Format
}{
	{".map.xml", FormatXML},
	{".map.yaml", FormatYAML},
	{".map.yml", FormatYAML},
}

// ErrInvalidMapFile is returned for map paths without a known suffix
var ErrInvalidMapFile = errors.New("data map file must end with .map.xml, .map.yaml or .map.yml")

// MapName derives the map name from a file name, e.g. "shop" from
// "db/shop.map.xml"
func MapName(path string) (string, error) {
	name, _, err := splitMapPath(path)
	return name, err
}

// MapFormat returns the encoding selected by the file suffix
func MapFormat(path string) (Format, error) {
	_, format, err := splitMapPath(path)
	return format, err
}

func splitMapPath(path string) (string, Format, error) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, s := range mapSuffixes {
		if strings.HasSuffix(lower, s.suffix) && len(base) > len(s.suffix) {
			return base[:len(base)-len(s.suffix)], s.format, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrInvalidMapFile, path)
}

// ProjectName derives the project name from a descriptor file name, e.g.
// "shop" from "cayenne-shop.xml"
func ProjectName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".xml")
	return strings.TrimPrefix(name, "cayenne-")
}

// EncodeMap writes a map in the given format
func EncodeMap(w io.Writer, m *model.DataMap, format Format) error {
	doc := newMapDocument(m)
	switch format {
	case FormatXML:
		return encodeXML(w, doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode data map: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported data map format %q", format)
}

// DecodeMap reads a map in the given format
func DecodeMap(r io.Reader, name string, format Format) (*model.DataMap, error) {
	doc := &mapDocument{}
	switch format {
	case FormatXML:
		if err := xml.NewDecoder(r).Decode(doc); err != nil {
			return nil, fmt.Errorf("failed to decode data map: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode data map: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported data map format %q", format)
	}

	if v := parseVersion(doc.ProjectVersion); v > parseVersion(ProjectVersion) {
		return nil, fmt.Errorf("data map version %s is newer than supported version %s", doc.ProjectVersion, ProjectVersion)
	}
	return doc.dataMap(name)
}

func encodeXML(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode XML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// LoadDataMap reads a map file. A missing file is reported with an error
// matching os.ErrNotExist.
func LoadDataMap(path string) (*model.DataMap, error) {
	name, format, err := splitMapPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	m, err := DecodeMap(file, name, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func loadProject(path string) (*projectDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := &projectDocument{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", path, err)
	}
	return doc, nil
}

// writeFile replaces path with the output of write, creating the directory
// if needed. The previous content survives a failed write.
func writeFile(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
