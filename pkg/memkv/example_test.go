package memkv_test

import (
    "fmt"

    "meshroof/pkg/memkv"
)

func Example_basic() {
    s := memkv.New(memkv.Options{})
    defer s.Close()

    _ = s.Set("node:!a1b2c3d4", []byte("admin"))

    v, _ := s.Get("node:!a1b2c3d4")
    fmt.Println(string(v))

    // atomic multi-key write
    _ = s.Apply([]memkv.Op{
        {Key: "node:!a1b2c3d4"},
        {Key: "node:!00000007", Value: []byte("mate")},
    })
    fmt.Println(s.Keys("node:"))

    st := s.Metrics()
    fmt.Println(st.Keys, st.Batches)

    // Output:
    // admin
    // [node:!00000007]
    // 1 1
}
