package recording

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// File is the on-disk shape: index key -> content hash -> interactions.
type File map[string]map[string]InteractionSet

// Entry is one (index, hash) addressed set within a File.
type Entry struct {
	Index string
	Hash  string
	Set   InteractionSet
}

// Entries returns every entry of f sorted by index, then hash.
func (f File) Entries() []Entry {
	var entries []Entry
	for index, hashes := range f {
		for hash, set := range hashes {
			entries = append(entries, Entry{Index: index, Hash: hash, Set: set})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Index != entries[j].Index {
			return entries[i].Index < entries[j].Index
		}
		return entries[i].Hash < entries[j].Hash
	})
	return entries
}

// Lookup returns the set stored under (index, hash).
func (f File) Lookup(index, hash string) (InteractionSet, bool) {
	hashes, ok := f[index]
	if !ok {
		return nil, false
	}
	set, ok := hashes[hash]
	return set, ok
}

// Put stores set under (index, hash), replacing any previous entry wholesale.
func (f File) Put(index, hash string, set InteractionSet) {
	hashes := f[index]
	if hashes == nil {
		hashes = make(map[string]InteractionSet)
		f[index] = hashes
	}
	hashes[hash] = set
}

// Merge copies every entry of src into f. Entries of src win on collision.
func (f File) Merge(src File) {
	for _, e := range src.Entries() {
		f.Put(e.Index, e.Hash, e.Set)
	}
}

// MainPath returns the main recording file for a fixture base path.
func MainPath(base string) string {
	return base + ".json"
}

// CandidatePath returns the candidate file holding not yet accepted traffic.
func CandidatePath(base string) string {
	return base + "-new.json"
}

// ArchivePath returns <dir>/old/<name>_<n>.json for the first n that is not taken.
func ArchivePath(base string) (string, error) {
	dir := filepath.Join(filepath.Dir(base), "old")
	name := filepath.Base(base)

	for n := 0; ; n++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.json", name, n))
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("archive path: %w", err)
		}
	}
}

// ReadFile loads a whole recording file.
// Returns a *NotFoundError with ErrCodeFileMissing if the file does not exist.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Code: ErrCodeFileMissing, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("read recording file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recording file %s: %w", path, err)
	}
	if file == nil {
		// A file holding null.
		file = File{}
	}
	return file, nil
}

// WriteFile serializes the whole file to path, creating parent directories.
func WriteFile(path string, file File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create recording directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recording file: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recording file: %w", err)
	}
	return nil
}

// Read returns the set stored under (key, hash) in the file at path.
func Read(path string, key IndexKey, hash string) (InteractionSet, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	index := key.String()
	hashes, ok := file[index]
	if !ok {
		return nil, &NotFoundError{Code: ErrCodeIndexMissing, Path: path, Index: index}
	}
	set, ok := hashes[hash]
	if !ok {
		return nil, &NotFoundError{Code: ErrCodeHashMissing, Path: path, Index: index, Hash: hash}
	}
	return set, nil
}

// Write stores set under (key, hash) in the file at path and rewrites the file.
// A missing file is created. Keys failing IndexKey.Validate are rejected.
func Write(path string, key IndexKey, hash string, set InteractionSet) error {
	if err := key.Validate(); err != nil {
		return err
	}

	file, err := ReadFile(path)
	if IsNotFound(err) {
		file = File{}
	} else if err != nil {
		return err
	}

	if set == nil {
		set = InteractionSet{}
	}
	file.Put(key.String(), hash, set)
	return WriteFile(path, file)
}

// PromoteResult describes what PromoteCandidate did.
type PromoteResult struct {
	// Archived is the path the previous main file was moved to. Empty when
	// there was no main file.
	Archived string

	// Promoted is the number of candidate entries merged into the main file.
	Promoted int
}

// PromoteCandidate merges the candidate file into the main file, archives the
// previous main file under old/ and deletes the candidate.
//
// The sequence is read, rename, write, remove. It is not atomic and must not
// run concurrently with other writers of the same base path.
func PromoteCandidate(base string) (PromoteResult, error) {
	candidatePath := CandidatePath(base)
	mainPath := MainPath(base)

	candidate, err := ReadFile(candidatePath)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("promote candidate: %w", err)
	}

	merged, err := ReadFile(mainPath)
	mainExists := true
	if IsNotFound(err) {
		merged = File{}
		mainExists = false
	} else if err != nil {
		return PromoteResult{}, fmt.Errorf("promote candidate: %w", err)
	}
	merged.Merge(candidate)

	var result PromoteResult
	if mainExists {
		archive, err := ArchivePath(base)
		if err != nil {
			return PromoteResult{}, fmt.Errorf("promote candidate: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(archive), 0o755); err != nil {
			return PromoteResult{}, fmt.Errorf("promote candidate: create archive directory: %w", err)
		}
		if err := os.Rename(mainPath, archive); err != nil {
			return PromoteResult{}, fmt.Errorf("promote candidate: archive main file: %w", err)
		}
		result.Archived = archive
	}

	if err := WriteFile(mainPath, merged); err != nil {
		return result, fmt.Errorf("promote candidate: %w", err)
	}
	if err := os.Remove(candidatePath); err != nil {
		return result, fmt.Errorf("promote candidate: remove candidate: %w", err)
	}

	result.Promoted = len(candidate.Entries())
	return result, nil
}
