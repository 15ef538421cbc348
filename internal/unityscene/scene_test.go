package unityscene

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sceneref/internal/model"
	"github.com/jward/sceneref/internal/scan"
)

const playerGUID = "8f1c2b7e4a9d4e0fb5a3c6d2e1f0a9b8"

// sampleScene has Main Camera and Level as roots (SceneRoots order), Player
// nested under Level, and a MonoBehaviour with a missing script.
const sampleScene = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!29 &1
OcclusionCullingSettings:
  m_ObjectHideFlags: 0
--- !u!1 &100
GameObject:
  m_ObjectHideFlags: 0
  m_Component:
  - component: {fileID: 101}
  - component: {fileID: 102}
  m_Layer: 0
  m_Name: Main Camera
--- !u!4 &101
Transform:
  m_GameObject: {fileID: 100}
  m_LocalPosition: {x: 0, y: 1, z: -10}
  m_Children: []
  m_Father: {fileID: 0}
--- !u!20 &102
Camera:
  m_GameObject: {fileID: 100}
  m_Enabled: 1
--- !u!1 &200
GameObject:
  m_Component:
  - component: {fileID: 201}
  m_Name: Level
--- !u!4 &201
Transform:
  m_GameObject: {fileID: 200}
  m_Children:
  - {fileID: 301}
  - {fileID: 401}
  m_Father: {fileID: 0}
--- !u!1 &300
GameObject:
  m_Component:
  - component: {fileID: 301}
  - component: {fileID: 302}
  - component: {fileID: 303}
  m_Name: Player
--- !u!4 &301
Transform:
  m_GameObject: {fileID: 300}
  m_Children: []
  m_Father: {fileID: 201}
--- !u!114 &302
MonoBehaviour:
  m_GameObject: {fileID: 300}
  m_Enabled: 1
  m_Script: {fileID: 11500000, guid: ` + playerGUID + `, type: 3}
  health: 100
--- !u!114 &303
MonoBehaviour:
  m_GameObject: {fileID: 300}
  m_Script: {fileID: 11500000, guid: 00000000000000000000000000000000, type: 3}
--- !u!1 &400
GameObject:
  m_Component:
  - component: {fileID: 401}
  m_Name: Spawn
--- !u!224 &401
RectTransform:
  m_GameObject: {fileID: 400}
  m_Children: []
  m_Father: {fileID: 201}
--- !u!1001 &500
PrefabInstance:
  m_Modification:
    m_TransformParent: {fileID: 0}
--- !u!4 &501 stripped
Transform:
  m_PrefabInstance: {fileID: 500}
--- !u!1660057539 &9223372036854775807
SceneRoots:
  m_Roots:
  - {fileID: 201}
  - {fileID: 101}
`

func writeScene(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return name
}

func paths(t *testing.T, nodes []scan.Node, prefix string) []string {
	t.Helper()
	var out []string
	for _, n := range nodes {
		p := prefix + n.Name()
		out = append(out, p)
		kids, err := n.Children()
		require.NoError(t, err)
		out = append(out, paths(t, kids, p+"/")...)
	}
	return out
}

func TestOpen_Hierarchy(t *testing.T) {
	root := t.TempDir()
	rel := writeScene(t, root, "Assets/Scenes/Main.unity", sampleScene)
	doc := &Document{Path: rel, Root: root, Scripts: ScriptIndex{playerGUID: "Game.Player"}}
	assert.Equal(t, "Assets/Scenes/Main.unity", doc.ID())

	forest, err := doc.Open(context.Background())
	require.NoError(t, err)
	defer forest.Close()

	assert.Equal(t, []string{"Level", "Level/Player", "Level/Spawn", "Main Camera"}, paths(t, forest.Roots(), ""))

	level := forest.Roots()[0]
	kids, err := level.Children()
	require.NoError(t, err)
	comps, err := kids[0].Components()
	require.NoError(t, err)
	assert.Equal(t, []string{"UnityEngine.Transform", "Game.Player"}, comps)

	spawn, err := kids[1].Components()
	require.NoError(t, err)
	assert.Equal(t, []string{"UnityEngine.RectTransform"}, spawn)
}

func TestOpen_RootOrderWithoutSceneRoots(t *testing.T) {
	root := t.TempDir()
	rel := writeScene(t, root, "Old.unity", `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &10
GameObject:
  m_Component:
  - 4: {fileID: 11}
  m_Name: Second
--- !u!4 &11
Transform:
  m_GameObject: {fileID: 10}
  m_Father: {fileID: 0}
  m_RootOrder: 1
--- !u!1 &20
GameObject:
  m_Component:
  - 4: {fileID: 21}
  m_Name: First
--- !u!4 &21
Transform:
  m_GameObject: {fileID: 20}
  m_Father: {fileID: 0}
  m_RootOrder: 0
`)
	forest, err := (&Document{Path: rel, Root: root}).Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, paths(t, forest.Roots(), ""))
	require.NoError(t, forest.Close())
	assert.Empty(t, forest.Roots())
}

func TestOpen_Errors(t *testing.T) {
	root := t.TempDir()
	_, err := (&Document{Path: "Missing.unity", Root: root}).Open(context.Background())
	require.Error(t, err)

	rel := writeScene(t, root, "Binary.unity", "\x00\x01\x02 not yaml")
	_, err = (&Document{Path: rel, Root: root}).Open(context.Background())
	require.ErrorIs(t, err, ErrNotScene)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Document{Path: rel, Root: root}).Open(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanScene(t *testing.T) {
	root := t.TempDir()
	main := writeScene(t, root, "Main.unity", sampleScene)
	empty := writeScene(t, root, "Empty.unity", "%YAML 1.1\n--- !u!29 &1\nOcclusionCullingSettings:\n  m_ObjectHideFlags: 0\n")

	metas := []*model.TypeMetadata{{Identity: model.TypeIdentity{FullName: "Game.Player"}, ContentID: playerGUID}}
	scripts := NewScriptIndex(metas)
	docs := Documents(root, []string{empty, main}, scripts)

	recs, warns, err := scan.New().Scan(context.Background(), "Game.Player", docs)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, []model.UsageRecord{{Document: "Main.unity", NodePaths: []string{"Level/Player"}}}, recs)

	found, err := scan.New().Locate(context.Background(), docs[1], "Level/Spawn")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestScanScene_UndecodableObject(t *testing.T) {
	root := t.TempDir()
	rel := writeScene(t, root, "Damaged.unity", `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &10
GameObject:
  m_Component:
  - 4: {fileID: 11}
  m_Name: Kept
--- !u!4 &11
Transform:
  m_GameObject: {fileID: 10}
  m_Father: {fileID: 0}
--- !u!1 &20
GameObject:
  m_Name: [oops
`)
	doc := &Document{Path: rel, Root: root}

	forest, err := doc.Open(context.Background())
	require.NoError(t, err)
	damage := forest.(scan.Damaged).Damage()
	require.Len(t, damage, 1)
	assert.Contains(t, damage[0].Error(), "&20")
	require.NoError(t, forest.Close())

	recs, warns, err := scan.New().Scan(context.Background(), "UnityEngine.Transform", []scan.Document{doc})
	require.NoError(t, err)
	assert.Equal(t, []model.UsageRecord{{Document: "Damaged.unity", NodePaths: []string{"Kept"}}}, recs)
	require.Len(t, warns, 1)
	assert.Equal(t, model.TraversalFailure, warns[0].Kind)
	assert.Equal(t, "Damaged.unity", warns[0].Source)
}

func TestNewScriptIndex(t *testing.T) {
	idx := NewScriptIndex([]*model.TypeMetadata{
		{Identity: model.TypeIdentity{FullName: "A"}, ContentID: "g1"},
		{Identity: model.TypeIdentity{FullName: "B"}},
	})
	assert.Equal(t, ScriptIndex{"g1": "A"}, idx)
}
