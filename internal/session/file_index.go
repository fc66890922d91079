package session

import (
	"sync"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
)

// FileMirror receives the full list of a user after every change
type FileMirror interface {
	SaveFiles(userID models.UserID, files []models.FileRecord)
	DeleteFiles(userID models.UserID)
}

// FileIndex is the ordered list of files each user uploaded.
// Positions are 1-based and shift down after a removal; callers must re-list
// before trusting an old position.
type FileIndex struct {
	mu     sync.Mutex
	files  map[models.UserID][]models.FileRecord
	mirror FileMirror
}

// NewFileIndex creates an empty index
func NewFileIndex() *FileIndex {
	return &FileIndex{files: make(map[models.UserID][]models.FileRecord)}
}

// SetMirror attaches a mirror for list changes
func (fi *FileIndex) SetMirror(m FileMirror) {
	fi.mirror = m
}

// Load installs lists read from persistent storage without mirroring them back
func (fi *FileIndex) Load(lists map[models.UserID][]models.FileRecord) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	for userID, files := range lists {
		fi.files[userID] = append([]models.FileRecord(nil), files...)
	}
}

// Append adds rec to the end of userID's list
func (fi *FileIndex) Append(userID models.UserID, rec models.FileRecord) {
	fi.mu.Lock()
	rec.Position = 0
	fi.files[userID] = append(fi.files[userID], rec)
	fi.saveLocked(userID)
	fi.mu.Unlock()
}

// List returns a copy of userID's list with positions filled in
func (fi *FileIndex) List(userID models.UserID) []models.FileRecord {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.snapshotLocked(userID)
}

// GetByPosition returns the entry at the 1-based position pos
func (fi *FileIndex) GetByPosition(userID models.UserID, pos int) (models.FileRecord, error) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	files := fi.files[userID]
	if pos < 1 || pos > len(files) {
		return models.FileRecord{}, ErrOutOfRange
	}

	rec := files[pos-1]
	rec.Position = pos
	return rec, nil
}

// RemoveByPosition removes and returns the entry at pos. Later entries move up by one.
func (fi *FileIndex) RemoveByPosition(userID models.UserID, pos int) (models.FileRecord, error) {
	fi.mu.Lock()
	files := fi.files[userID]
	if pos < 1 || pos > len(files) {
		fi.mu.Unlock()
		return models.FileRecord{}, ErrOutOfRange
	}

	removed := fi.removeLocked(userID, pos-1)
	removed.Position = pos
	fi.saveLocked(userID)
	fi.mu.Unlock()

	return removed, nil
}

// RemoveByRemoteID removes the first entry pointing at remoteID. It is the
// fallback when the list moved between reading a position and committing.
func (fi *FileIndex) RemoveByRemoteID(userID models.UserID, remoteID string) (models.FileRecord, bool) {
	fi.mu.Lock()
	for i, rec := range fi.files[userID] {
		if rec.RemoteID != remoteID {
			continue
		}
		removed := fi.removeLocked(userID, i)
		fi.saveLocked(userID)
		fi.mu.Unlock()

		return removed, true
	}
	fi.mu.Unlock()
	return models.FileRecord{}, false
}

// Drop forgets the whole list of userID
func (fi *FileIndex) Drop(userID models.UserID) {
	fi.mu.Lock()
	_, existed := fi.files[userID]
	delete(fi.files, userID)
	if existed && fi.mirror != nil {
		fi.mirror.DeleteFiles(userID)
	}
	fi.mu.Unlock()
}

func (fi *FileIndex) removeLocked(userID models.UserID, i int) models.FileRecord {
	files := fi.files[userID]
	removed := files[i]

	next := make([]models.FileRecord, 0, len(files)-1)
	next = append(next, files[:i]...)
	next = append(next, files[i+1:]...)
	fi.files[userID] = next

	return removed
}

func (fi *FileIndex) snapshotLocked(userID models.UserID) []models.FileRecord {
	files := fi.files[userID]
	out := make([]models.FileRecord, len(files))
	for i, rec := range files {
		rec.Position = i + 1
		out[i] = rec
	}
	return out
}

// saveLocked hands the mirror a snapshot while fi.mu is held, so mirrored
// lists arrive in the order they were changed
func (fi *FileIndex) saveLocked(userID models.UserID) {
	if fi.mirror != nil {
		fi.mirror.SaveFiles(userID, fi.snapshotLocked(userID))
	}
}
