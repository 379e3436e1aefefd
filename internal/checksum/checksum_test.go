package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs should not collide")
	}
}

func TestJSON(t *testing.T) {
	data, sum, err := JSON([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" || sum != Sum([]byte("[]")) {
		t.Errorf("JSON = %s, %s", data, sum)
	}
	if _, _, err := JSON(make(chan int)); err == nil {
		t.Error("expected error for unsupported type")
	}
}
