package cleaning

import (
	"errors"
	"reflect"
	"testing"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

func idTable(ids ...table.Cell) *table.Table {
	rows := make([][]table.Cell, len(ids))
	for i, id := range ids {
		rows[i] = []table.Cell{id, table.Text("x")}
	}
	return table.New([]string{"Transaction Number", "Other"}, rows)
}

func ids(t *table.Table) []string {
	out := make([]string, t.Len())
	for i := range out {
		c, _ := t.Value(i, "Transaction Number")
		if c.Null {
			out[i] = "<null>"
		} else {
			out[i] = c.Value
		}
	}
	return out
}

func TestIsInvalidID(t *testing.T) {
	tests := []struct {
		name string
		cell table.Cell
		want bool
	}{
		{"missing", table.Missing(), true},
		{"empty", table.Text(""), true},
		{"spaces", table.Text("   "), true},
		{"NaN", table.Text("NaN"), true},
		{"null padded", table.Text(" Null "), true},
		{"NULL", table.Text("NULL"), true},
		{"numeric", table.Text("1001"), false},
		{"word", table.Text("abc"), false},
		{"negative", table.Text("-7"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidID(tt.cell); got != tt.want {
				t.Errorf("IsInvalidID(%+v) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestIsNegativeID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"-7", true},
		{" -0.5 ", true},
		{"-1e3", true},
		{"-inf", true},
		{"-Infinity", true},
		{"inf", false},
		{"-infinite", false},
		{"0", false},
		{"-0", false},
		{"42", false},
		{"abc", false},
		{"-abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsNegativeID(table.Text(tt.input)); got != tt.want {
				t.Errorf("IsNegativeID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNullDetector_DisjointPasses(t *testing.T) {
	in := idTable(
		table.Text("1"),
		table.Text("NaN"),
		table.Text(""),
		table.Missing(),
		table.Text("-7"),
		table.Text("abc"),
		table.Text("2"),
	)
	d := NullDetector{Column: "Transaction Number"}

	afterNulls, invalid, err := d.DetectNulls(in)
	if err != nil {
		t.Fatalf("DetectNulls error = %v", err)
	}
	cleaned, negative, err := d.DetectNegatives(afterNulls)
	if err != nil {
		t.Fatalf("DetectNegatives error = %v", err)
	}

	if got, want := ids(invalid), []string{"NaN", "", "<null>"}; !reflect.DeepEqual(got, want) {
		t.Errorf("invalid = %v, want %v", got, want)
	}
	if got, want := ids(negative), []string{"-7"}; !reflect.DeepEqual(got, want) {
		t.Errorf("negative = %v, want %v", got, want)
	}
	if got, want := ids(cleaned), []string{"1", "abc", "2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("cleaned = %v, want %v", got, want)
	}
	if got, want := cleaned.Indices(), []int{0, 5, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("cleaned indices = %v, want %v", got, want)
	}
}

func TestNullDetector_Errors(t *testing.T) {
	d := NullDetector{Column: "Transaction Number"}

	if _, _, err := d.DetectNulls(nil); !errors.Is(err, ErrMissingTable) {
		t.Errorf("DetectNulls(nil) error = %v, want ErrMissingTable", err)
	}

	noID := table.New([]string{"Other"}, nil)
	if _, _, err := d.DetectNegatives(noID); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("DetectNegatives error = %v, want ErrMissingColumn", err)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	in := table.New([]string{"a", "b"}, [][]table.Cell{
		{table.Text("1"), table.Text("x")},
		{table.Text("2"), table.Text("y")},
		{table.Text("1"), table.Text("x")},
		{table.Text("3"), table.Missing()},
		{table.Text("3"), table.Text("")},
		{table.Text("2"), table.Text("y")},
	})

	out, removed := RemoveDuplicates(in)

	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got, want := out.Indices(), []int{0, 1, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("Indices = %v, want %v", got, want)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"19.999", "20.00"},
		{"abc", "0.00"},
		{"", "0.00"},
		{"7", "7.00"},
		{" 3.1 ", "3.10"},
		{"-3.5", "-3.50"},
		{"1e2", "100.00"},
		{"2.675", "2.67"},
		{"$5", "0.00"},
		{"0.005", "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatPrice(tt.input); got != tt.want {
				t.Errorf("FormatPrice(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPriceNormalizer_Normalize(t *testing.T) {
	in := table.New([]string{"Gross Price"}, [][]table.Cell{
		{table.Text("19.999")},
		{table.Missing()},
		{table.Text("12.50")},
	})

	out, err := PriceNormalizer{Column: "Gross Price"}.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}

	want := []string{"20.00", "0.00", "12.50"}
	for i, w := range want {
		c, _ := out.Value(i, "Gross Price")
		if c.Null || c.Value != w {
			t.Errorf("row %d = %+v, want %q", i, c, w)
		}
	}
	if out.Len() != in.Len() {
		t.Errorf("Len = %d, want %d", out.Len(), in.Len())
	}
	if c, _ := in.Value(0, "Gross Price"); c.Value != "19.999" {
		t.Errorf("input mutated: %q", c.Value)
	}
}

func TestCategoryFilter_LiteralMatch(t *testing.T) {
	in := table.New([]string{"Fuel Type"}, [][]table.Cell{
		{table.Text("gas")},
		{table.Text("Gasoline")},
		{table.Text("GAS")},
		{table.Text("LNG")},
		{table.Missing()},
	})

	f := NewCategoryFilter("Fuel Type", []string{"gas", "LNG"})
	kept, rejected, err := f.Filter(in)
	if err != nil {
		t.Fatalf("Filter error = %v", err)
	}

	if got, want := kept.Indices(), []int{0, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("kept = %v, want %v", got, want)
	}
	if got, want := rejected.Indices(), []int{1, 2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("rejected = %v, want %v", got, want)
	}
}

func TestCategoryFilter_AccumulatesAcrossCalls(t *testing.T) {
	f := NewCategoryFilter("Fuel Type", DefaultFuelTypes)

	first := table.New([]string{"Fuel Type"}, [][]table.Cell{{table.Text("coal")}, {table.Text("diesel")}})
	second := table.New([]string{"Fuel Type"}, [][]table.Cell{{table.Text("wood")}})

	if _, _, err := f.Filter(first); err != nil {
		t.Fatalf("first Filter error = %v", err)
	}
	_, rejected, err := f.Filter(second)
	if err != nil {
		t.Fatalf("second Filter error = %v", err)
	}

	if rejected.Len() != 2 {
		t.Errorf("rejected Len = %d, want 2", rejected.Len())
	}
	if f.Anomalies().Len() != 2 {
		t.Errorf("Anomalies Len = %d, want 2", f.Anomalies().Len())
	}
}

func TestAnomalyTable(t *testing.T) {
	src := idTable(table.Text("NaN"), table.Text("-7"))
	invalid, negative := src.Partition(func(r table.Row) bool { return r.Index == 0 })

	a := NewAnomalyTable(src.Columns())
	a.Append(ReasonNullOrInvalidID, invalid)
	a.Append(ReasonNegativeID, negative)
	a.Append(ReasonNonFuelCategory, nil)

	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	if a.Count(ReasonNegativeID) != 1 {
		t.Errorf("Count(NegativeId) = %d, want 1", a.Count(ReasonNegativeID))
	}

	flat := a.Table()
	if got, want := flat.Columns(), []string{ReasonColumn, "Transaction Number", "Other"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v, want %v", got, want)
	}
	if c, _ := flat.Value(1, ReasonColumn); c.Value != "NegativeId" {
		t.Errorf("reason = %q, want NegativeId", c.Value)
	}
	if got := a.TableFor(ReasonNullOrInvalidID).Len(); got != 1 {
		t.Errorf("TableFor Len = %d, want 1", got)
	}
}

func TestStateTable(t *testing.T) {
	s := DefaultStates()

	if len(s) != 50 {
		t.Errorf("len = %d, want 50", len(s))
	}
	if got := s.Expand("il"); got != "Illinois" {
		t.Errorf("Expand(il) = %q, want Illinois", got)
	}
	if got := s.Expand("ZZ"); got != "ZZ" {
		t.Errorf("Expand(ZZ) = %q, want ZZ", got)
	}

	merged := s.Merge(map[string]string{"dc": "District of Columbia"})
	if got := merged.Expand("DC"); got != "District of Columbia" {
		t.Errorf("merged Expand(DC) = %q", got)
	}
	if _, ok := s["DC"]; ok {
		t.Error("Merge modified the receiver")
	}
}
