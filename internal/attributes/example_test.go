package attributes

import (
	"fmt"
	"time"
)

func ExampleValue_Raw() {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	values := []Value{
		Varchar("Europe/Berlin"),
		Integer(3),
		Boolean(true),
		Date(2030, time.January, 7),
		Datetime(time.Date(2030, 1, 7, 9, 0, 0, 0, berlin)),
	}
	for _, v := range values {
		fmt.Printf("%s %v\n", v.Type, v.Raw())
	}
	// Output:
	// varchar Europe/Berlin
	// integer 3
	// boolean true
	// date 2030-01-07
	// datetime 2030-01-07T08:00:00Z
}
