package csharp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sceneref/internal/introspect"
	"github.com/jward/sceneref/internal/model"
)

func parse(t *testing.T, src, preferred string) *Type {
	t.Helper()
	typ, err := Parse(context.Background(), []byte(src), preferred, DefaultAssembly)
	require.NoError(t, err)
	require.NotNil(t, typ)
	return typ
}

func fields(t *testing.T, typ *Type) map[string]introspect.FieldInfo {
	t.Helper()
	out := map[string]introspect.FieldInfo{}
	for i := 0; i < typ.NumField(); i++ {
		f, err := typ.Field(i)
		require.NoError(t, err)
		out[f.Name] = f
	}
	return out
}

func TestParse_ClassWithMembers(t *testing.T) {
	typ := parse(t, `using UnityEngine;

namespace Game.Units
{
    public class Player : MonoBehaviour, IDamageable
    {
        public int health;
        private Weapon weapon;
        [SerializeField] float speed, turnRate;
        public static int Count;
        const int Max = 10;

        public int Health { get; private set; }
        public string Tag => "player";
        private Enemy Target { get; set; }

        void Update() { }
        public void Attack(Enemy enemy, float damage) { }
        public static Player Spawn() { return null; }
    }
}
`, "Player")

	assert.Equal(t, model.TypeIdentity{FullName: "Game.Units.Player", Unit: DefaultAssembly}, typ.Identity())
	base, ok := typ.BaseType()
	require.True(t, ok)
	assert.Equal(t, "MonoBehaviour", base)

	fs := fields(t, typ)
	require.Contains(t, fs, "health")
	assert.Equal(t, "int", fs["health"].TypeName)
	assert.True(t, fs["health"].Public)
	require.Contains(t, fs, "weapon")
	assert.Equal(t, "Weapon", fs["weapon"].TypeName)
	assert.False(t, fs["weapon"].Public)
	assert.Contains(t, fs, "speed")
	assert.Contains(t, fs, "turnRate")
	assert.True(t, fs["Count"].Static)
	assert.True(t, fs["Max"].Static)

	methods := map[string]introspect.MethodInfo{}
	for i := 0; i < typ.NumMethod(); i++ {
		m, err := typ.Method(i)
		require.NoError(t, err)
		methods[m.Name] = m
	}
	require.Len(t, methods, 3)
	assert.Equal(t, "void", methods["Update"].ReturnType)
	assert.False(t, methods["Update"].Public)
	assert.Equal(t, []string{"Enemy", "float"}, methods["Attack"].Params)
	assert.True(t, methods["Attack"].Public)
	assert.True(t, methods["Spawn"].Static)

	props := map[string]introspect.PropertyInfo{}
	for i := 0; i < typ.NumProperty(); i++ {
		p, err := typ.Property(i)
		require.NoError(t, err)
		props[p.Name] = p
	}
	require.Len(t, props, 3)
	assert.True(t, props["Health"].Public)
	assert.True(t, props["Health"].CanRead)
	assert.True(t, props["Health"].CanWrite)
	assert.True(t, props["Tag"].CanRead)
	assert.False(t, props["Tag"].CanWrite)
	assert.Equal(t, "Enemy", props["Target"].TypeName)
	assert.False(t, props["Target"].Public)
}

func TestParse_NoClass(t *testing.T) {
	_, err := Parse(context.Background(), []byte(`namespace Game { public interface IThing { void Run(); } }`), "IThing", DefaultAssembly)
	require.ErrorIs(t, err, ErrNoClass)
}

func TestParse_PrefersClassMatchingFileName(t *testing.T) {
	typ := parse(t, `
class Helper { }
class Spawner { Helper helper; }
`, "Spawner")
	assert.Equal(t, "Spawner", typ.Identity().FullName)

	typ = parse(t, `
class Helper { }
class Spawner { }
`, "Missing")
	assert.Equal(t, "Helper", typ.Identity().FullName)
}

func TestParse_NoBaseIsObject(t *testing.T) {
	typ := parse(t, `public class Inventory : IEnumerable<Item> { }`, "Inventory")
	base, ok := typ.BaseType()
	require.True(t, ok)
	assert.Equal(t, "Object", base)
}

func TestParse_FileScopedNamespace(t *testing.T) {
	typ := parse(t, `namespace Game.Ui;

public class Hud { }
`, "Hud")
	assert.Equal(t, "Game.Ui.Hud", typ.Identity().FullName)
}

func TestParse_IntrospectScenario(t *testing.T) {
	a := parse(t, `class A { B b; }`, "A")
	b := parse(t, `class B { }`, "B")
	known := introspect.NewKnownSet([]model.TypeIdentity{a.Identity(), b.Identity()})

	ma, warns := introspect.Introspect(a, known)
	require.Empty(t, warns)
	assert.Equal(t, []string{"B"}, ma.Dependencies)

	mb, _ := introspect.Introspect(b, known)
	assert.Empty(t, mb.Dependencies)
}

func TestType_MalformedMemberAccessor(t *testing.T) {
	typ := &Type{
		id: model.TypeIdentity{FullName: "Broken"},
		fields: []member[introspect.FieldInfo]{
			{info: introspect.FieldInfo{Name: "ok", TypeName: "int"}},
			{err: introspect.ErrMalformedMember},
		},
	}
	meta, warns := introspect.Introspect(typ, nil)
	require.Len(t, warns, 1)
	assert.ErrorIs(t, warns[0], introspect.ErrMalformedMember)
	require.Len(t, meta.Fields, 1)
	assert.Equal(t, "ok", meta.Fields[0].Name)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolver_AssemblyDefinitions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Assets/Scripts/Player.cs"), `public class Player { }`)
	writeFile(t, filepath.Join(root, "Assets/Plugins/Net/Game.Net.asmdef"), "\xef\xbb\xbf{\n  \"name\": \"Game.Net\"\n}")
	writeFile(t, filepath.Join(root, "Assets/Plugins/Net/Sync/Client.cs"), `public class Client { }`)
	writeFile(t, filepath.Join(root, "Assets/Scripts/IThing.cs"), `public interface IThing { }`)
	writeFile(t, filepath.Join(root, "Assets/Scripts/readme.txt"), `class NotCode { }`)

	r, err := NewResolver(root, WithDefaultAssembly("Game.Main"))
	require.NoError(t, err)
	ctx := context.Background()

	h, err := r.Resolve(ctx, "Assets/Scripts/Player.cs")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, model.TypeIdentity{FullName: "Player", Unit: "Game.Main"}, h.Identity())

	h, err = r.Resolve(ctx, filepath.Join(root, "Assets/Plugins/Net/Sync/Client.cs"))
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Game.Net", h.Identity().Unit)

	h, err = r.Resolve(ctx, "Assets/Scripts/IThing.cs")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = r.Resolve(ctx, "Assets/Scripts/readme.txt")
	require.NoError(t, err)
	assert.Nil(t, h)

	_, err = r.Resolve(ctx, "Assets/Scripts/Missing.cs")
	require.Error(t, err)
}
