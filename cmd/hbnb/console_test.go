package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/hbnb/entity"
	"github.com/hazyhaar/hbnb/idgen"
	"github.com/hazyhaar/hbnb/storage"
)

func testEngine(t *testing.T) (*storage.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.json")
	eng := storage.NewEngine(entity.Registry(),
		storage.WithPath(path),
		storage.WithLogger(slog.New(slog.DiscardHandler)))
	return eng, path
}

func session(t *testing.T, c *console, input string) string {
	t.Helper()
	var out bytes.Buffer
	c.out = &out
	if err := c.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

func TestConsole_Exit(t *testing.T) {
	eng, _ := testEngine(t)
	tests := []struct {
		name, input, want string
	}{
		{"quit", "quit\n", prompt},
		{"EOF command", "EOF\n", prompt + "\n"},
		{"end of input", "", prompt + "\n"},
		{"empty line", "\n   \nquit\n", prompt + prompt + prompt},
		{"quit stops reading", "quit\nbogus\n", prompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := session(t, newConsole(eng, nil), tt.input); got != tt.want {
				t.Fatalf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsole_UnknownSyntax(t *testing.T) {
	eng, _ := testEngine(t)
	got := session(t, newConsole(eng, nil), "frobnicate the thing\nquit\n")
	want := prompt + "*** Unknown syntax: frobnicate the thing\n" + prompt
	if got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestConsole_Help(t *testing.T) {
	eng, _ := testEngine(t)
	got := session(t, newConsole(eng, nil), "help\nhelp quit\nhelp nothing\n")
	for _, want := range []string{
		"Documented commands (type help <topic>):",
		"EOF  all  create  help  quit  show",
		"Quit command to exit the program",
		"*** No help on nothing",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestConsole_Create(t *testing.T) {
	eng, path := testEngine(t)
	c := newConsole(eng, nil)
	var synced int
	c.afterSave = func(context.Context) { synced++ }

	got := session(t, c, "create BaseModel\n")
	id := strings.TrimSuffix(strings.TrimPrefix(strings.SplitN(got, "\n", 2)[0], prompt), "\n")
	if !idgen.Valid(id) {
		t.Fatalf("create printed %q, want a UUID (output %q)", id, got)
	}
	if _, ok := eng.Get(storage.KeyOf(entity.KindBaseModel, id)); !ok {
		t.Fatal("created entity not in engine")
	}
	if synced != 1 {
		t.Fatalf("afterSave calls = %d, want 1", synced)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !strings.Contains(string(data), `"BaseModel.`+id+`"`) {
		t.Fatalf("snapshot missing the new entity:\n%s", data)
	}
}

func TestConsole_Diagnostics(t *testing.T) {
	eng, _ := testEngine(t)
	tests := []struct {
		line, want string
	}{
		{"create", "** class name missing **"},
		{"create Ghost", "** class doesn't exist **"},
		{"show", "** class name missing **"},
		{"show Ghost 1", "** class doesn't exist **"},
		{"show BaseModel", "** instance id missing **"},
		{"show BaseModel 1234", "** no instance found **"},
		{"all Ghost", "** class doesn't exist **"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := session(t, newConsole(eng, nil), tt.line+"\n")
			want := prompt + tt.want + "\n" + prompt + "\n"
			if got != want {
				t.Fatalf("output = %q, want %q", got, want)
			}
		})
	}
	if eng.Len() != 0 {
		t.Fatalf("diagnostics created %d objects", eng.Len())
	}
}

func TestConsole_ShowAndAll(t *testing.T) {
	eng, _ := testEngine(t)
	a := entity.New(eng)
	b := entity.New(eng)

	got := session(t, newConsole(eng, nil), "show BaseModel "+a.ID()+"\n")
	if !strings.Contains(got, "[BaseModel] ("+a.ID()+")") {
		t.Fatalf("show output = %q", got)
	}

	got = session(t, newConsole(eng, nil), "all\n")
	for _, m := range []*entity.BaseModel{a, b} {
		if !strings.Contains(got, "[BaseModel] ("+m.ID()+")") {
			t.Errorf("all output missing %s:\n%s", m.ID(), got)
		}
	}
	if n := strings.Count(got, "[BaseModel]"); n != 2 {
		t.Fatalf("all printed %d entities, want 2", n)
	}

	got = session(t, newConsole(eng, nil), "all BaseModel\n")
	if n := strings.Count(got, "[BaseModel]"); n != 2 {
		t.Fatalf("all BaseModel printed %d entities, want 2", n)
	}
}

func TestConsole_StopsOnCancel(t *testing.T) {
	eng, _ := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	defer r.Close()

	var out bytes.Buffer
	if err := newConsole(eng, &out).run(ctx, r); err != nil {
		t.Fatalf("run: %v", err)
	}
}
