package transform

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/samber/lo"
)

// RenameTransform resolves fields which the underlying service exposes under
// another name or deeper inside the object.
type RenameTransform struct{}

type renameGroup struct {
	from  []string
	types []string
	alias string
}

type renameState struct {
	instructions map[string]*blueprint.RenameInstruction

	groups   []*renameGroup
	typename string
}

func (*RenameTransform) Name() string { return "rename" }

func (*RenameTransform) IsApplicable(
	_ context.Context,
	ectx *ExecutionContext,
	_ *blueprint.Service,
	field *normalized.Field,
) (State, bool) {
	instructions := make(map[string]*blueprint.RenameInstruction)
	for _, t := range field.ObjectTypeNames {
		if ins, ok := ectx.Blueprint.Renames[blueprint.FieldCoordinates{TypeName: t, FieldName: field.Name}]; ok {
			instructions[t] = ins
		}
	}
	if len(instructions) == 0 {
		return nil, false
	}
	return &renameState{instructions: instructions}, true
}

func (*RenameTransform) TransformField(
	ctx context.Context,
	_ *ExecutionContext,
	tr *Transformer,
	_ *blueprint.Service,
	field *normalized.Field,
	state State,
) (*FieldResult, error) {
	s := state.(*renameState)

	var plain []string
	groups := make(map[string]*renameGroup)
	for _, t := range field.ObjectTypeNames {
		ins, ok := s.instructions[t]
		if !ok {
			plain = append(plain, t)
			continue
		}
		key := strings.Join(ins.From, ".")
		if g, ok := groups[key]; ok {
			g.types = append(g.types, t)
			continue
		}
		groups[key] = &renameGroup{from: ins.From, types: []string{t}}
	}

	keys := lo.Keys(groups)
	sort.Strings(keys)

	if len(plain) == 0 && len(keys) == 1 && !groups[keys[0]].isDeep() {
		nf := field.CopyShallow()
		nf.Name = groups[keys[0]].from[0]
		nf.Alias = ""
		if field.ResultKey() != nf.Name {
			nf.Alias = field.ResultKey()
		}
		return &FieldResult{NewField: nf}, nil
	}

	res := &FieldResult{}
	if len(plain) > 0 {
		res.NewField = field.CopyShallow()
		res.NewField.ObjectTypeNames = plain
	}

	for i, key := range keys {
		g := groups[key]
		g.alias = artificialAlias("rename", field.ResultKey(), strconv.Itoa(i))

		root, inner := fieldChain(g.alias, g.from, tr.UnderlyingTypeNames(g.types))
		inner.Arguments = field.CopyShallow().Arguments
		for _, arg := range inner.Arguments {
			arg.Type = tr.UnderlyingInputType(arg.Type)
		}
		children, err := tr.TransformFields(ctx, field.Children)
		if err != nil {
			return nil, err
		}
		inner.Children = children

		s.groups = append(s.groups, g)
		res.ArtificialFields = append(res.ArtificialFields, root)
	}

	if len(s.groups) > 1 || len(plain) > 0 || needsTypename(field) {
		s.typename = artificialAlias("rename", field.ResultKey(), typenameAliasPart)
		res.ArtificialFields = append(res.ArtificialFields,
			normalized.NewTypenameField(s.typename, tr.UnderlyingTypeNames(siblingTypes(field))))
	}

	return res, nil
}

func (g *renameGroup) isDeep() bool {
	return len(g.from) > 1
}

func (*RenameTransform) GetResultInstructions(
	_ context.Context,
	ectx *ExecutionContext,
	service *blueprint.Service,
	overallField *normalized.Field,
	underlyingParentField *normalized.Field,
	_ *ServiceResult,
	state State,
	nodes *jsonnodes.JSONNodes,
) ([]Instruction, error) {
	s := state.(*renameState)
	if len(s.groups) == 0 {
		return nil, nil
	}

	parents, err := parentNodes(nodes, underlyingParentField)
	if err != nil {
		return nil, err
	}

	var res []Instruction
	for _, p := range parents {
		obj := p.Object()
		typeName := ""
		if s.typename != "" {
			typeName = objectTypeOf(ectx, service, p, s.typename, "")
		}

		for _, g := range s.groups {
			if _, ok := obj[g.alias]; !ok {
				continue
			}
			if typeName != "" && !lo.Contains(g.types, typeName) {
				continue
			}
			res = append(res, Set{Subject: p, Key: overallField.ResultKey(), Value: dig(obj[g.alias], g.from[1:])})
		}
	}
	return res, nil
}
