// Copyright 2023 Jesus Ruiz. All rights reserved.
// Use of this source code is governed by an Apache-2.0
// license that can be found in the LICENSE file.

package sliceedit

import (
	"reflect"
	"testing"
)

func TestFindAll(t *testing.T) {
	tests := []struct {
		buf  string
		item string
		want []int
	}{
		{"{#title} and {#title}", "{#title}", []int{0, 13}},
		{"aaa", "a", []int{0, 1, 2}},
		{"nothing here", "{#x}", []int{}},
		{"abc", "", []int{}},
	}

	for _, tt := range tests {
		got := FindAll([]byte(tt.buf), tt.item)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FindAll(%q, %q) = %v, want %v", tt.buf, tt.item, got, tt.want)
		}
	}
}

func TestReplaceAllString(t *testing.T) {
	b := NewBuffer([]byte("see {#fig1.num} and {#fig1.num} again"))
	b.ReplaceAllString("{#fig1.num}", "3")

	want := "see 3 and 3 again"
	if got := b.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReplaceAllPairs(t *testing.T) {
	b := NewBuffer([]byte("{#title}: figure {#fig1.num}"))
	b.ReplaceAllPairs("{#title}", "My Document", "{#fig1.num}", "1")

	want := "My Document: figure 1"
	if got := b.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDeleteAllString(t *testing.T) {
	b := NewBuffer([]byte("one, two, three"))
	b.DeleteAllString(", ")

	want := "onetwothree"
	if got := b.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
