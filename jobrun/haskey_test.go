package jobrun_test

import (
	"reflect"

	check "gopkg.in/check.v1"
)

// hasKeyChecker verifies that a map contains the given key. gopkg.in/check.v1
// does not ship a HasKey checker, so the tests define one locally.
type hasKeyChecker struct {
	*check.CheckerInfo
}

var HasKey check.Checker = &hasKeyChecker{
	&check.CheckerInfo{Name: "HasKey", Params: []string{"obtained", "key"}},
}

func (checker *hasKeyChecker) Check(params []interface{}, names []string) (bool, string) {
	m := reflect.ValueOf(params[0])
	if m.Kind() != reflect.Map {
		return false, "obtained value is not a map"
	}
	k := reflect.ValueOf(params[1])
	if !k.IsValid() || !k.Type().AssignableTo(m.Type().Key()) {
		return false, "key type does not match map key type"
	}
	return m.MapIndex(k).IsValid(), ""
}
