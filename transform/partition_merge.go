package transform

import (
	"github.com/buildbuildio/quilt/blueprint"
	"github.com/buildbuildio/quilt/normalized"
)

const partitionedCallExtension = "errorHappenedOnPartitionedCall"

// mergePartitions merges the values of the partitioned calls of field, the
// primary call first.
func mergePartitions(shape blueprint.MergeShape, field *normalized.Field, values []interface{}) interface{} {
	switch shape {
	case blueprint.ListShape:
		return mergeLists(values)
	case blueprint.MutationPayloadShape:
		return mergePayloads(field, values)
	default:
		return values[0]
	}
}

func mergeLists(values []interface{}) interface{} {
	var res []interface{}
	found := false
	for _, v := range values {
		list, ok := v.([]interface{})
		if !ok {
			continue
		}
		found = true
		res = append(res, list...)
	}
	if !found {
		return nil
	}
	if res == nil {
		res = []interface{}{}
	}
	return res
}

// mergePayloads ANDs success and concatenates every list field. Items of the
// errors field coming from extra calls are tagged.
func mergePayloads(field *normalized.Field, values []interface{}) interface{} {
	successKeys := make(map[string]bool)
	errorsKeys := make(map[string]bool)
	for _, c := range field.Children {
		switch c.Name {
		case "success":
			successKeys[c.ResultKey()] = true
		case "errors":
			errorsKeys[c.ResultKey()] = true
		}
	}

	var res map[string]interface{}
	for i, v := range values {
		obj, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if res == nil {
			res = make(map[string]interface{}, len(obj))
		}

		for k, fv := range obj {
			switch {
			case successKeys[k]:
				b, _ := fv.(bool)
				if prev, ok := res[k].(bool); ok {
					b = prev && b
				}
				res[k] = b
			case errorsKeys[k] && i > 0:
				res[k] = appendList(res[k], tagPartitionedErrors(fv))
			default:
				if list, ok := fv.([]interface{}); ok {
					res[k] = appendList(res[k], list)
				} else if _, ok := res[k]; !ok {
					res[k] = fv
				}
			}
		}
	}

	if res == nil {
		return nil
	}
	return res
}

func appendList(existing interface{}, list []interface{}) []interface{} {
	prev, _ := existing.([]interface{})
	res := make([]interface{}, 0, len(prev)+len(list))
	res = append(res, prev...)
	return append(res, list...)
}

func tagPartitionedErrors(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	res := make([]interface{}, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			res[i] = item
			continue
		}

		tagged := make(map[string]interface{}, len(obj)+1)
		for k, fv := range obj {
			tagged[k] = fv
		}
		extensions := make(map[string]interface{})
		if prev, ok := obj["extensions"].(map[string]interface{}); ok {
			for k, fv := range prev {
				extensions[k] = fv
			}
		}
		extensions[partitionedCallExtension] = true
		tagged["extensions"] = extensions
		res[i] = tagged
	}
	return res
}
