package subscription

import "reflect"

func reflectFuncEqual(a, b Handler) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
