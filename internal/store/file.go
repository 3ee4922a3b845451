package store

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML or JSON tree file into a Memory store
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tree file %s", path)
	}
	tree, err := DecodeTree(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tree file %s", path)
	}
	return NewMemory(tree), nil
}

// DecodeTree parses YAML (and therefore JSON) tree data
func DecodeTree(data []byte) (Tree, error) {
	var tree Tree
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tree); err != nil {
		return Tree{}, err
	}
	return tree, nil
}

// WriteFile writes a tree as YAML
func WriteFile(path string, tree Tree) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "close %s", path)
		}
	}()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return errors.Wrap(err, "encode tree")
	}
	return enc.Close()
}
