package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func upper(name string) Step {
	return Map(name, func(_ context.Context, a *Asset) (*Asset, error) {
		c := a.Clone()
		c.Contents = bytes.ToUpper(a.Contents)
		return c, nil
	})
}

type recordingNotifier struct{ got [][]string }

func (r *recordingNotifier) Stream(paths []string) { r.got = append(r.got, paths) }

func TestChain_ShapeIndependentOfCondition(t *testing.T) {
	build := func(optimize bool) Chain {
		return NewBuilder().
			Add(upper("compile")).
			AddIf(optimize, upper("minify")).
			Add(Rename("rename", ".min")).
			Build()
	}
	on, off := build(true), build(false)

	if diff := cmp.Diff(on.Names(), off.Names()); diff != "" {
		t.Fatalf("chain shape differs (-on +off):\n%s", diff)
	}
	assert.Empty(t, on.Bridged())
	assert.Equal(t, []string{"minify"}, off.Bridged())
}

func TestNoop_IsIdentity(t *testing.T) {
	in := []*Asset{{Path: "a.css", Contents: []byte("x")}}
	out, err := Noop("n").Fn(t.Context(), in)
	require.NoError(t, err)
	assert.Same(t, in[0], out[0])
}

func TestChain_RunWritesAndStreams(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "dist", "css")
	n := &recordingNotifier{}

	chain := NewBuilder().
		Add(Write("write", dest)).
		Add(upper("minify")).
		Add(Rename("rename", ".min")).
		Add(Write("write-min", dest)).
		Add(Stream("stream", n, filepath.Join(root, "dist"))).
		Build()

	in := []*Asset{{Source: "src/scss/main.scss", Path: "main.css", Contents: []byte("a{b:c}")}}
	out, err := chain.Run(t.Context(), "styles", in)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dest, "main.css"), filepath.Join(dest, "main.min.css")}, out.Written)
	assert.Equal(t, "main.min.css", out.Assets[0].Path)
	assert.Equal(t, "main.css", in[0].Path, "input assets are not mutated")

	data, err := os.ReadFile(filepath.Join(dest, "main.min.css"))
	require.NoError(t, err)
	assert.Equal(t, "A{B:C}", string(data))
	assert.Equal(t, [][]string{{"css/main.css", "css/main.min.css"}}, n.got)
}

func TestChain_StepErrorAbortsRun(t *testing.T) {
	dest := t.TempDir()
	boom := errors.New("boom")
	chain := Chain{
		{Name: "compile", Fn: func(context.Context, []*Asset) ([]*Asset, error) { return nil, boom }},
		Write("write", dest),
	}

	_, err := chain.Run(t.Context(), "styles", []*Asset{{Path: "x.css"}})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "styles", se.Stage)
	assert.Equal(t, "compile", se.Step)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "stage styles step compile: boom", err.Error())

	_, statErr := os.Stat(filepath.Join(dest, "x.css"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWrite_FailureIsFileSystemError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := Write("write", blocker).Fn(t.Context(), []*Asset{{Path: "sub/a.txt"}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestStream_NilNotifier(t *testing.T) {
	in := []*Asset{{Path: "a"}}
	out, err := Stream("stream", nil, "/").Fn(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFilterAndPaths(t *testing.T) {
	in := []*Asset{{Path: "a.png"}, {Path: "b.svg"}}
	out, err := Filter("raster", func(a *Asset) bool { return a.Ext() != ".svg" }).Fn(t.Context(), in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a.png", out[0].Path)

	assert.Equal(t, "icons/a.webp", WithExt("icons/a.png", ".webp"))
	assert.Equal(t, "script.min.js", WithSuffix("script.js", ".min"))
}

func TestWriteIf_OnlyWritesAccepted(t *testing.T) {
	dest := t.TempDir()
	in := []*Asset{{Path: "a.png", Contents: []byte("p")}, {Path: "a.webp", Contents: []byte("w")}}
	chain := Chain{WriteIf("write-webp", dest, func(a *Asset) bool { return a.Ext() == ".webp" })}

	out, err := chain.Run(t.Context(), "images", in)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "a.webp")}, out.Written)
	assert.Len(t, out.Assets, 2)
}
