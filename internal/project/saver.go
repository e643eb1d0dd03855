package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/tordrt/dbsync/internal/model"
)

// Saver writes maps and keeps the project descriptor listing them up to date
type Saver struct {
	logger *slog.Logger
}

// NewSaver creates a saver. A nil logger discards messages.
func NewSaver(logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Saver{logger: logger}
}

// Load implements the map loading side of the store
func (s *Saver) Load(mapPath string) (*model.DataMap, error) {
	return LoadDataMap(mapPath)
}

// Save writes the map to mapPath. With projectPath set the map is also
// registered in that descriptor, which is created when missing. A map
// already listed under the same name is replaced in place.
func (s *Saver) Save(m *model.DataMap, mapPath, projectPath string) error {
	name, format, err := splitMapPath(mapPath)
	if err != nil {
		return err
	}
	if m.Name == "" {
		m.Name = name
	}

	if err := writeFile(mapPath, func(w io.Writer) error {
		return EncodeMap(w, m, format)
	}); err != nil {
		return fmt.Errorf("failed to save data map %s: %w", m.Name, err)
	}

	if projectPath == "" {
		return nil
	}

	doc, err := loadProject(projectPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info(fmt.Sprintf("Project file does not exist. New project will be saved into '%s'", projectPath))
		doc = &projectDocument{}
	case err != nil:
		return err
	}

	doc.XMLName = xml.Name{Local: "domain"}
	doc.Namespace = DomainNamespace
	doc.ProjectVersion = ProjectVersion
	for i := range doc.Other {
		// inherited from the root
		doc.Other[i].XMLName.Space = ""
	}
	doc.addMap(m.Name)

	if err := writeFile(projectPath, func(w io.Writer) error {
		return encodeXML(w, doc)
	}); err != nil {
		return fmt.Errorf("failed to save project %s: %w", ProjectName(projectPath), err)
	}
	return nil
}

// ProjectMaps returns the map names registered in a descriptor
func ProjectMaps(projectPath string) ([]string, error) {
	doc, err := loadProject(projectPath)
	if err != nil {
		return nil, err
	}
	return doc.MapNames(), nil
}
