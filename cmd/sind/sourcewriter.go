package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// srcTreeWriter implements pkg/vm.SourceWriter, mirroring every
// ASSIGN_CODE_ITEM's reconstructed source under --srcroot, per §6.4:
// `<srcroot>/<layer1>/<layer2>/…/source.sin`.
type srcTreeWriter struct {
	root string
}

// newSrcTreeWriter resolves --srcroot per original_source/src/sin.c's
// two branches: the default "srcroot/" is created if missing, but an
// explicitly supplied path that doesn't exist (or isn't a writable
// directory) is a fatal configuration error, never silently created.
func newSrcTreeWriter(root string, isDefault bool) (*srcTreeWriter, error) {
	if isDefault {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, err
		}
		return &srcTreeWriter{root: root}, nil
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("sind: directory %s does not exist", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sind: %s exists but it is not a directory", root)
	}
	probe, err := os.CreateTemp(root, ".sind-writable-*")
	if err != nil {
		return nil, fmt.Errorf("sind: %s exists, but it is not writable", root)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &srcTreeWriter{root: root}, nil
}

// WriteSource implements pkg/vm.SourceWriter.
func (w *srcTreeWriter) WriteSource(fqName string, reconstructed string) error {
	layers := strings.Split(fqName, ".")
	dir := filepath.Join(append([]string{w.root}, layers...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, "source.sin")
	return os.WriteFile(path, []byte(reconstructed+"\n"), 0644)
}
