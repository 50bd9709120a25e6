// Copyright 2025 The Strata Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package strata_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShadowGHO/strata"
)

// Mesh is an identifier block owning a vertex buffer.
type Mesh struct {
	ID      strata.ID
	Verts   strata.Ptr
	TotVert int32

	VertsData []float32 `strata:"runtime"`
}

// Object is an identifier block referencing a Mesh.
type Object struct {
	ID   strata.ID
	Mesh strata.Ptr
}

func newCatalog(t *testing.T) *strata.Catalog {
	t.Helper()
	cat := strata.NewCatalog()
	_, err := cat.Register(Mesh{})
	require.NoError(t, err)
	_, err = cat.Register(Object{})
	require.NoError(t, err)
	return cat
}

// registerHandlers installs the Mesh and Object callbacks, with the write
// side closing over the arena that owns the live objects.
func registerHandlers(a *strata.Arena) {
	strata.RegisterHandler("Mesh", strata.Handler{
		Write: func(w *strata.Writer, addr strata.Address, obj any) {
			m := obj.(*Mesh)
			w.WriteIDStruct("Mesh", addr, m)
			if data, ok := a.Lookup(m.Verts).([]float32); ok {
				w.WriteFloat3Array(m.Verts, data)
			}
		},
		ReadData: func(r *strata.DataReader, obj any) {
			m := obj.(*Mesh)
			m.VertsData = r.ReadFloat3Array(&m.Verts)
		},
	})
	strata.RegisterHandler("Object", strata.Handler{
		Write: func(w *strata.Writer, addr strata.Address, obj any) {
			w.WriteIDStruct("Object", addr, obj)
		},
		ReadLib: func(r *strata.LibReader, obj any) {
			o := obj.(*Object)
			r.RelocID(o.ID.Lib, &o.Mesh)
		},
		Expand: func(e *strata.Expander, obj any) {
			e.Expand(obj.(*Object).Mesh)
		},
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cat := newCatalog(t)
	a := strata.NewArena()
	registerHandlers(a)

	verts := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	mesh := &Mesh{TotVert: 3}
	mesh.ID.SetName("ME_Cube")
	mesh.ID.RefreshSessionUUID()
	writeUUID := mesh.ID.SessionUUID
	obj := &Object{}
	obj.ID.SetName("OB_Cube")

	addrMesh := a.Put(mesh)
	addrObj := a.Put(obj)
	mesh.Verts = a.Put(verts)
	obj.Mesh = addrMesh

	m := strata.NewMain()
	_, err := m.Add("Mesh", addrMesh, mesh)
	require.NoError(t, err)
	_, err = m.Add("Object", addrObj, obj)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = strata.Save(&buf, m, cat, a, strata.SaveOptions{
		Checksum: true,
		Metadata: map[string]string{"scene": "intro"},
	})
	require.NoError(t, err)

	res, err := strata.Load(&buf, cat, strata.LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Main.Len())
	assert.Equal(t, "little", res.Header.ByteOrder)
	assert.Equal(t, "intro", res.Header.Metadata["scene"])
	assert.Empty(t, res.Missing)

	meshEntry := res.Main.ByName(strata.Nil, "ME_Cube")
	require.NotNil(t, meshEntry)
	loadedMesh := meshEntry.Obj.(*Mesh)
	assert.Equal(t, int32(3), loadedMesh.TotVert)
	assert.Equal(t, verts, loadedMesh.VertsData)
	assert.NotEqual(t, strata.Nil, loadedMesh.Verts, "vertex pointer should relocate, not dangle")

	objEntry := res.Main.ByName(strata.Nil, "OB_Cube")
	require.NotNil(t, objEntry)
	loadedObj := objEntry.Obj.(*Object)
	assert.Equal(t, meshEntry.Addr, loadedObj.Mesh, "object should reference the loaded mesh")
	assert.Same(t, meshEntry.Obj, res.Arena.Lookup(loadedObj.Mesh))

	// Runtime identity is never read from the file.
	assert.NotEmpty(t, loadedMesh.ID.SessionUUID)
	assert.NotEqual(t, writeUUID, loadedMesh.ID.SessionUUID)
	assert.NotEqual(t, loadedMesh.ID.SessionUUID, loadedObj.ID.SessionUUID)

	assert.ElementsMatch(t, []strata.Ptr{meshEntry.Addr, objEntry.Addr}, res.Scheduled)
}

func TestLoadMissingReference(t *testing.T) {
	cat := newCatalog(t)
	a := strata.NewArena()
	registerHandlers(a)

	// The object references a mesh that is not part of this file.
	const absentMesh = strata.Address(999)
	obj := &Object{Mesh: absentMesh}
	obj.ID.SetName("OB_Orphan")
	addrObj := a.Put(obj)

	m := strata.NewMain()
	_, err := m.Add("Object", addrObj, obj)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, strata.Save(&buf, m, cat, a, strata.SaveOptions{}))

	res, err := strata.Load(&buf, cat, strata.LoadOptions{})
	require.NoError(t, err)

	objEntry := res.Main.ByName(strata.Nil, "OB_Orphan")
	require.NotNil(t, objEntry)
	assert.Equal(t, strata.Nil, objEntry.Obj.(*Object).Mesh,
		"unresolved reference should read as null, never a stale token")
	require.Len(t, res.Missing, 1)
	assert.Equal(t, strata.Ptr(absentMesh), res.Missing[0].Old)
	assert.Equal(t, []strata.Ptr{objEntry.Addr}, res.Scheduled)
}

func TestSaveWithoutHandlerFails(t *testing.T) {
	cat := newCatalog(t)
	a := strata.NewArena()

	// An entry type with no registered write handler aborts the session.
	type Orphan struct {
		ID strata.ID
	}
	_, err := cat.Register(Orphan{})
	require.NoError(t, err)

	o := &Orphan{}
	o.ID.SetName("OR_Phan")
	m := strata.NewMain()
	_, err = m.Add("Orphan", a.Put(o), o)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = strata.Save(&buf, m, cat, a, strata.SaveOptions{})
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "failed session must not produce partial output")
}
