package helpers

import (
	"fmt"
	"reflect"
	"time"

	"github.com/thedevsaddam/govalidator"
)

const DateLayoutISO8601 = "2006-01-02"

func init() {
	govalidator.AddCustomRule("date_ISO8601", func(field string, rule string, message string, value interface{}) error {
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.String {
			date := value.(string)
			if date == "" {
				return nil
			}
			if _, err := time.Parse(DateLayoutISO8601, date); err != nil {
				if message != "" {
					return fmt.Errorf(message)
				}
				return fmt.Errorf("The %s field must be ISO8601 yyyy-mm-dd date", field)
			}
		}
		return nil
	})
	// amounts are integers in the smallest currency unit
	govalidator.AddCustomRule("amount", func(field string, rule string, message string, value interface{}) error {
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if rv.Int() >= 0 {
				return nil
			}
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f >= 0 && f == float64(int64(f)) {
				return nil
			}
		default:
			return nil
		}
		if message != "" {
			return fmt.Errorf(message)
		}
		return fmt.Errorf("The %s field must be a non negative whole amount", field)
	})
}
