package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			method: "List",
			args:   []any{},
			want:   "List",
		},
		{
			name:   "single int",
			method: "GetByID",
			args:   []any{42},
			want:   joinWithSeparator("GetByID", "42"),
		},
		{
			name:   "multiple basic types",
			method: "Get",
			args:   []any{1, "hello", true, 3.14},
			want:   joinWithSeparator("Get", "1", "hello", "true", "3.14"),
		},
		{
			name:   "page window",
			method: "user_customers",
			args:   []any{"u-1", 2, 5},
			want:   joinWithSeparator("user_customers", "u-1", "2", "5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Composite(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	type Filter struct {
		UserID int
		Name   string
		secret string
	}

	value := 42

	tests := []struct {
		name string
		args []any
		want string
	}{
		{
			name: "int slice",
			args: []any{[]int{1, 2, 3}},
			want: "slice[3]:{1,2,3}",
		},
		{
			name: "nil slice",
			args: []any{[]int(nil)},
			want: "slice:nil",
		},
		{
			name: "nested slice",
			args: []any{[][]int{{1, 2}, {3, 4}}},
			want: "slice[2]:{slice[2]:{1,2},slice[2]:{3,4}}",
		},
		{
			name: "string array",
			args: []any{[2]string{"hello", "world"}},
			want: "array[2]:{hello,world}",
		},
		{
			name: "map sorted",
			args: []any{map[string]int{"limit": 5, "page": 1}},
			want: "map[2]:{limit=5,page=1}",
		},
		{
			name: "struct skips unexported",
			args: []any{Filter{UserID: 7, Name: "x", secret: "s"}},
			want: "struct:{UserID:7,Name:x}",
		},
		{
			name: "pointer",
			args: []any{&value},
			want: "42",
		},
		{
			name: "nil pointer",
			args: []any{(*int)(nil)},
			want: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey("M", tt.args...)
			want := joinWithSeparator("M", tt.want)
			if got != want {
				t.Errorf("SerializeKey() = %v, want %v", got, want)
			}
		})
	}
}

func TestDefaultKeySerializer_Stringers(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	id := uuid.MustParse("8d7f1a52-3c55-4f0e-9b1c-4f9f3f3f7a10")
	got := serializer.SerializeKey("user_customers", id, 1, 5)
	want := joinWithSeparator("user_customers", id.String(), "1", "5")
	if got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := serializer.SerializeKey("At", ts); got != joinWithSeparator("At", ts.String()) {
		t.Errorf("time should serialize with String(), got %v", got)
	}

	if got := serializer.SerializeKey("Nil", (*time.Time)(nil)); got != joinWithSeparator("Nil", "nil") {
		t.Errorf("nil stringer pointer should serialize as nil, got %v", got)
	}
}

func TestDefaultKeySerializer_Functions(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	testFunc := func() {}

	key1 := serializer.SerializeKey("GetWithFunc", testFunc)
	key2 := serializer.SerializeKey("GetWithFunc", testFunc)

	if key1 != key2 {
		t.Errorf("Function serialization should be stable: %v != %v", key1, key2)
	}

	if !strings.HasPrefix(key1, joinWithSeparator("GetWithFunc", "func")+":") {
		t.Errorf("Function serialization should use func: prefix, got: %v", key1)
	}

	ch := make(chan int)
	if key := serializer.SerializeKey("GetWithChannel", ch); !strings.HasPrefix(key, joinWithSeparator("GetWithChannel", "chan")+":") {
		t.Errorf("Channel should be serialized with chan: prefix, got: %v", key)
	}
}

func TestDefaultKeySerializer_Stability(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	args := []any{1, "hello", []int{1, 2, 3}, map[string]int{"a": 1, "b": 2, "c": 3}}

	key1 := serializer.SerializeKey("TestMethod", args...)
	for i := 0; i < 20; i++ {
		if key := serializer.SerializeKey("TestMethod", args...); key != key1 {
			t.Fatalf("Key serialization should be stable: %v != %v", key, key1)
		}
	}
}

func TestHashedKeySerializer(t *testing.T) {
	serializer := NewHashedKeySerializer(nil, 32)

	short := serializer.SerializeKey("user_customers", "u", 1, 5)
	if short != joinWithSeparator("user_customers", "u", "1", "5") {
		t.Errorf("short keys should pass through, got %v", short)
	}

	long1 := serializer.SerializeKey("user_customers", strings.Repeat("a", 64), 1, 5)
	long2 := serializer.SerializeKey("user_customers", strings.Repeat("a", 64), 2, 5)

	if !strings.HasPrefix(long1, joinWithSeparator("user_customers", "h:")) {
		t.Errorf("long keys should be hashed, got %v", long1)
	}
	if long1 == long2 {
		t.Error("different arguments should produce different hashed keys")
	}
	if again := serializer.SerializeKey("user_customers", strings.Repeat("a", 64), 1, 5); again != long1 {
		t.Errorf("hashed keys should be stable: %v != %v", again, long1)
	}
}

func BenchmarkDefaultKeySerializer(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	args := []any{1, "benchmark", []int{1, 2, 3}, map[string]int{"test": 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("BenchmarkMethod", args...)
	}
}
