// Package sceneref builds a structural model of the C# types in a Unity
// project and finds where each type is attached in the project's scenes.
//
// # Pipeline
//
// sceneref operates in two phases:
//
//  1. Collect: each .cs unit is parsed with tree-sitter into a type handle.
//     Handles are de-duplicated by type identity, introspected for fields,
//     methods, properties and base type, and linked by dependency edges that
//     stay inside the collected corpus.
//
//  2. Scan: on demand, every scene is opened and walked depth-first. A node
//     is a usage of a type when one of its components has exactly that
//     type's full name. Results are cached per type and reused while the
//     type's unit is unchanged.
//
// # Usage
//
//	e, err := sceneref.New("path/to/project",
//		sceneref.WithFolders("Assets/Scripts"),
//		sceneref.WithWorkers(4))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	metas, warnings, err := e.CollectProject(ctx)
//	meta, usages, warnings, err := e.Usages(ctx, "Player")
//
// # Cache
//
// The usage cache is keyed by the unit's asset GUID and remembers the
// unit's modification time. Editing a scene does not invalidate it; touch
// or edit the script to force a rescan. Use [WithStore] to persist the
// cache between runs.
package sceneref
