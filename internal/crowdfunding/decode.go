package crowdfunding

import (
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/structs"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// record reads fields out of one decoded tuple. Unpacked tuples are anonymous
// structs whose field names are the camel-cased contract names; they are flattened
// into a map so each expected field can be checked and defaulted on its own.
type record struct {
	values map[string]interface{}
	report FieldReport
}

func newRecord(tuple interface{}) (*record, error) {
	if tuple == nil || !structs.IsStruct(tuple) {
		return nil, errors.Mark(errors.Errorf("expected tuple, got %T", tuple), ErrDecode)
	}
	return &record{values: structs.Map(tuple)}, nil
}

// recordFromMap builds a record from an already flattened tuple, keyed by contract
// field name.
func recordFromMap(values map[string]interface{}) *record {
	m := make(map[string]interface{}, len(values))
	for k, v := range values {
		m[abi.ToCamelCase(k)] = v
	}
	return &record{values: m}
}

func (r *record) lookup(field string) (interface{}, bool) {
	v, ok := r.values[abi.ToCamelCase(field)]
	return v, ok
}

func (r *record) present(field string) {
	r.report.Present = append(r.report.Present, field)
}

func (r *record) defaulted(field string, got interface{}) {
	r.report.Defaulted = append(r.report.Defaulted, field)
	if got != nil {
		log.Debugf("contract field %s has unexpected type %T, defaulted", field, got)
	}
}

func (r *record) bigInt(field string) *big.Int {
	v, _ := r.lookup(field)
	switch n := v.(type) {
	case *big.Int:
		if n != nil {
			r.present(field)
			return new(big.Int).Set(n)
		}
	case uint64:
		r.present(field)
		return new(big.Int).SetUint64(n)
	case int64:
		r.present(field)
		return big.NewInt(n)
	}
	r.defaulted(field, v)
	return new(big.Int)
}

func (r *record) uint64(field string) uint64 {
	v, _ := r.lookup(field)
	switch n := v.(type) {
	case *big.Int:
		if n != nil && n.IsUint64() {
			r.present(field)
			return n.Uint64()
		}
	case uint64:
		r.present(field)
		return n
	}
	r.defaulted(field, v)
	return 0
}

func (r *record) string(field string) string {
	v, _ := r.lookup(field)
	if s, ok := v.(string); ok {
		r.present(field)
		return s
	}
	r.defaulted(field, v)
	return ""
}

func (r *record) bool(field string) bool {
	v, _ := r.lookup(field)
	if b, ok := v.(bool); ok {
		r.present(field)
		return b
	}
	r.defaulted(field, v)
	return false
}

func (r *record) address(field string) common.Address {
	v, _ := r.lookup(field)
	switch a := v.(type) {
	case common.Address:
		r.present(field)
		return a
	case string:
		if common.IsHexAddress(a) {
			r.present(field)
			return common.HexToAddress(a)
		}
	}
	r.defaulted(field, v)
	return common.Address{}
}

func (r *record) project() *Project {
	p := &Project{
		ID:             r.bigInt("id"),
		Title:          r.string("title"),
		Description:    r.string("description"),
		FundingGoal:    r.bigInt("fundingGoal"),
		CurrentFunding: r.bigInt("currentFunding"),
		Deadline:       r.uint64("deadline"),
		ImageURL:       r.string("imageUrl"),
		Category:       r.string("category"),
		Creator:        r.address("creator"),
		IsFunded:       r.bool("isFunded"),
		IsExpired:      r.bool("isExpired"),
	}
	p.Decode = r.report
	return p
}

func (r *record) backer() *Backer {
	b := &Backer{
		Address:   r.address("backer"),
		Amount:    r.bigInt("amount"),
		Timestamp: r.uint64("timestamp"),
	}
	b.Decode = r.report
	return b
}

func (r *record) backerInfo() *BackerInfo {
	info := &BackerInfo{
		Amount:    r.bigInt("amount"),
		HasBacked: r.bool("hasBacked"),
	}
	info.Decode = r.report
	return info
}

// DecodeProject turns one project tuple into a Project, defaulting missing or
// mistyped fields. Only a value that is not a tuple at all is an error.
func DecodeProject(tuple interface{}) (*Project, error) {
	r, err := newRecord(tuple)
	if err != nil {
		return nil, err
	}
	return r.project(), nil
}

// DecodeProjectFields is DecodeProject for a tuple already keyed by contract field
// name, e.g. {"id": ..., "title": ...}.
func DecodeProjectFields(fields map[string]interface{}) *Project {
	return recordFromMap(fields).project()
}

func DecodeBacker(tuple interface{}) (*Backer, error) {
	r, err := newRecord(tuple)
	if err != nil {
		return nil, err
	}
	return r.backer(), nil
}

func decodeList(list interface{}, each func(interface{}) error) error {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return errors.Mark(errors.Errorf("expected list, got %T", list), ErrDecode)
	}
	for i := 0; i < v.Len(); i++ {
		if err := each(v.Index(i).Interface()); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	return nil
}

func decodeProjects(list interface{}) ([]*Project, error) {
	var out []*Project
	err := decodeList(list, func(elem interface{}) error {
		p, err := DecodeProject(elem)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if out == nil && err == nil {
		out = []*Project{}
	}
	return out, err
}

func decodeBackers(list interface{}) ([]*Backer, error) {
	var out []*Backer
	err := decodeList(list, func(elem interface{}) error {
		b, err := DecodeBacker(elem)
		if err != nil {
			return err
		}
		out = append(out, b)
		return nil
	})
	if out == nil && err == nil {
		out = []*Backer{}
	}
	return out, err
}

func decodeIDs(list interface{}) ([]*big.Int, error) {
	out := []*big.Int{}
	err := decodeList(list, func(elem interface{}) error {
		n, ok := elem.(*big.Int)
		if !ok || n == nil {
			out = append(out, new(big.Int))
			return nil
		}
		out = append(out, new(big.Int).Set(n))
		return nil
	})
	return out, err
}
