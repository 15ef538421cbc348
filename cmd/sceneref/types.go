package main

import "github.com/jward/sceneref"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command  string       `json:"command"`
	Results  any          `json:"results"`
	Warnings []CLIWarning `json:"warnings,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// CLIWarning is a JSON-friendly recovered failure.
type CLIWarning struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// CLIType is a JSON-friendly type record.
type CLIType struct {
	Name         string     `json:"name"`
	FullName     string     `json:"full_name"`
	Unit         string     `json:"unit"`
	Folder       string     `json:"folder"`
	File         string     `json:"file"`
	ContentID    string     `json:"content_id"`
	BaseType     string     `json:"base_type"`
	Fields       []string   `json:"fields"`
	Methods      []string   `json:"methods"`
	Properties   []string   `json:"properties"`
	Dependencies []string   `json:"dependencies"`
	Usages       []CLIUsage `json:"usages,omitempty"`
}

// CLIUsage lists the node paths of one scene where a type is attached.
type CLIUsage struct {
	Scene string   `json:"scene"`
	Nodes []string `json:"nodes"`
}

// CLITypeUsages is the result of the usages command for one type.
type CLITypeUsages struct {
	Type   string     `json:"type"`
	Usages []CLIUsage `json:"usages"`
}

// CLIEdge is a JSON-friendly dependency edge.
type CLIEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// CLILocate is the result of the locate command.
type CLILocate struct {
	Scene string `json:"scene"`
	Path  string `json:"path"`
	Found bool   `json:"found"`
}

func typeToCLI(m *sceneref.TypeMetadata) CLIType {
	t := CLIType{
		Name:         m.Name,
		FullName:     m.Identity.FullName,
		Unit:         m.Identity.Unit,
		Folder:       m.Folder,
		File:         m.UnitPath,
		ContentID:    m.ContentID,
		BaseType:     m.BaseType,
		Fields:       memberStrings(m.Fields),
		Methods:      memberStrings(m.Methods),
		Properties:   memberStrings(m.Properties),
		Dependencies: append([]string{}, m.Dependencies...),
	}
	if len(m.Usages) > 0 {
		t.Usages = usagesToCLI(m.Usages)
	}
	return t
}

func typesToCLI(metas []*sceneref.TypeMetadata) []CLIType {
	out := make([]CLIType, len(metas))
	for i, m := range metas {
		out[i] = typeToCLI(m)
	}
	return out
}

func memberStrings(members []sceneref.MemberDescriptor) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.String()
	}
	return out
}

func usagesToCLI(recs []sceneref.UsageRecord) []CLIUsage {
	out := make([]CLIUsage, len(recs))
	for i, r := range recs {
		out[i] = CLIUsage{Scene: r.Document, Nodes: r.NodePaths}
	}
	return out
}

func edgesToCLI(edges []sceneref.Edge) []CLIEdge {
	out := make([]CLIEdge, len(edges))
	for i, e := range edges {
		out[i] = CLIEdge{Source: e.Source, Target: e.Target}
	}
	return out
}

func warningsToCLI(warns []sceneref.Warning) []CLIWarning {
	if len(warns) == 0 {
		return nil
	}
	out := make([]CLIWarning, len(warns))
	for i, w := range warns {
		out[i] = CLIWarning{Kind: string(w.Kind), Source: w.Source, Message: w.Err.Error()}
	}
	return out
}
