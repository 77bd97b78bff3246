package transform

import (
	"context"

	"github.com/buildbuildio/quilt/jsonnodes"
	"github.com/buildbuildio/quilt/normalized"
	"github.com/buildbuildio/quilt/paths"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// TransformResult turns the underlying result of tr's query into an overall
// one. Instructions of all fields are computed concurrently and applied in
// plan order afterwards; artificial fields are removed last.
func TransformResult(ctx context.Context, tr *Transformer, result *ServiceResult) error {
	if result.Data == nil {
		return nil
	}

	nodes := jsonnodes.NewJSONNodes(result.Data)
	visits := tr.plan.Visits()
	instructions := make([][]Instruction, len(visits))

	g, gctx := errgroup.WithContext(ctx)
	for i, visit := range visits {
		i, visit := i, visit
		g.Go(func() error {
			var res []Instruction
			for _, step := range visit.Steps {
				ins, err := step.Transform.GetResultInstructions(
					gctx, tr.ectx, tr.service, visit.Field, visit.UnderlyingParent(), result, step.State, nodes,
				)
				if err != nil {
					return errors.Wrapf(err, "%s result on %s", step.Transform.Name(), visit.Field.QueryPath())
				}
				res = append(res, ins...)
			}
			instructions[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, ins := range instructions {
		Apply(result, ins)
	}

	return removeArtificialFields(result.Data, tr.artificial)
}

func removeArtificialFields(data map[string]interface{}, fields []*normalized.Field) error {
	for _, f := range fields {
		parentPath := paths.RootQueryPath
		if f.Parent != nil {
			parentPath = f.Parent.QueryPath()
		}

		parents, err := jsonnodes.GetNodesAt(data, parentPath, true)
		if err != nil {
			return err
		}
		for _, p := range parents {
			if obj := p.Object(); obj != nil {
				delete(obj, f.ResultKey())
			}
		}
	}
	return nil
}

// parentNodes returns the objects at the path of underlyingParent.
func parentNodes(nodes *jsonnodes.JSONNodes, underlyingParent *normalized.Field) ([]*jsonnodes.JSONNode, error) {
	parentPath := paths.RootQueryPath
	if underlyingParent != nil {
		parentPath = underlyingParent.QueryPath()
	}

	all, err := nodes.GetNodesAt(parentPath, true)
	if err != nil {
		return nil, err
	}

	res := make([]*jsonnodes.JSONNode, 0, len(all))
	for _, n := range all {
		if n.Object() != nil {
			res = append(res, n)
		}
	}
	return res, nil
}
