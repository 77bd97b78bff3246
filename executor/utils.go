package executor

// mergeMaps will merge the right map into the left map recursively
func mergeMaps(left, right map[string]interface{}) map[string]interface{} {
	for key, rightVal := range right {
		if leftVal, present := left[key]; present {
			// If both values is map[string]interface{} - recursively merge it
			lv, ok1 := leftVal.(map[string]interface{})
			rv, ok2 := rightVal.(map[string]interface{})
			if ok1 && ok2 {
				left[key] = mergeMaps(lv, rv)
				continue
			}
		}
		left[key] = rightVal
	}
	return left
}

// setAt sets key of the object found by following keys from data. Missing
// objects on the way are created.
func setAt(data map[string]interface{}, keys []string, key string, value interface{}) {
	obj := data
	for _, k := range keys {
		next, ok := obj[k].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			obj[k] = next
		}
		obj = next
	}
	obj[key] = value
}
