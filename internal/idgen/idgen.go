// Package idgen generates short, URL-safe node ids backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// NodePrefix is prepended to generated node ids.
var NodePrefix = "node-"

// Alphabet is the character set of the random part.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters, excluding the prefix.
var Length = 8

// Node returns a new node id.
func Node() (string, error) {
	return WithPrefix(NodePrefix)
}

// WithPrefix returns a new id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Unique returns a new id with prefix that taken does not report as used.
func Unique(prefix string, taken func(string) bool) (string, error) {
	for {
		id, err := WithPrefix(prefix)
		if err != nil {
			return "", err
		}
		if !taken(id) {
			return id, nil
		}
	}
}
