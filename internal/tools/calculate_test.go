package tools

import (
	"context"
	"testing"
)

func TestCalculateBasic(t *testing.T) {
	cases := map[string]string{
		"2^10":          "2^10 = 1024",
		"1 + 2 * 3":     "1 + 2 * 3 = 7",
		"(1 + 2) * 3":   "(1 + 2) * 3 = 9",
		"sqrt(16)":      "sqrt(16) = 4",
		"10 / 4":        "10 / 4 = 2.5",
	}
	tool := NewCalculateTool()
	for expr, want := range cases {
		got, err := tool.Execute(context.Background(), map[string]interface{}{"expression": expr})
		if err != nil {
			t.Fatalf("Execute(%q) error: %v", expr, err)
		}
		if got != want {
			t.Fatalf("Execute(%q) = %q, want %q", expr, got, want)
		}
	}
}

func TestCalculateDivisionByZero(t *testing.T) {
	tool := NewCalculateTool()
	_, err := tool.Execute(context.Background(), map[string]interface{}{"expression": "1/0"})
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
	var mathErr *MathError
	if !asMathError(err, &mathErr) {
		t.Fatalf("expected *MathError, got %T: %v", err, err)
	}
}

func TestCalculateInvalidExpression(t *testing.T) {
	tool := NewCalculateTool()
	_, err := tool.Execute(context.Background(), map[string]interface{}{"expression": "2 +"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func asMathError(err error, target **MathError) bool {
	e, ok := err.(*MathError)
	if !ok {
		return false
	}
	*target = e
	return true
}
