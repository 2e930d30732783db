package headhunter

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

type SearchParams struct {
	Text string `hhparam:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas       []int    `hhparam:"area"`
	OrderBy     string   `hhparam:"order_by"`
	SearchField string   `hhparam:"search_field"`
	Schedules   []string `hhparam:"schedule"`
	PerPage     int      `hhparam:"per_page"`
	Experience  string   `hhparam:"experience"`
	Period      uint     `hhparam:"period"`
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	if params == nil {
		return q
	}

	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("hhparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []int:
			for _, item := range v {
				q.Add(key, strconv.Itoa(item))
			}
		case []string:
			for _, item := range v {
				q.Add(key, item)
			}
		default:
			s := fmt.Sprintf("%v", v)
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
