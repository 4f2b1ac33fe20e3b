package drafts

import (
	"github.com/gdkp/gdkp-backend/internal/staging"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// AppendBlank adds an empty record for manual entry.
func AppendBlank() Op {
	return func(s *staging.Session) error {
		s.Editor.AppendBlank()
		return nil
	}
}

// EditRecord patches the record at index.
func EditRecord(index int, patch staging.Patch) Op {
	return func(s *staging.Session) error {
		return s.Editor.Edit(index, patch)
	}
}

// RemoveRecord drops the record at index.
func RemoveRecord(index int) Op {
	return func(s *staging.Session) error {
		return s.Editor.Remove(index)
	}
}

// SetLocation replaces the batch location; nil or blank clears it.
func SetLocation(loc *types.Location) Op {
	return func(s *staging.Session) error {
		s.SetLocation(loc)
		return nil
	}
}
