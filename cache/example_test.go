package cache_test

import (
	"fmt"

	"github.com/jonwraymond/toolbatch/cache"
)

func ExampleNewStore() {
	s := cache.NewStore[string](cache.DefaultConfig())

	args := map[string]any{"file_path": "/src/main.go"}
	_ = s.Set("read_file", args, "package main", cache.SetOptions{})

	value, ok := s.Get("read_file", args)
	fmt.Println(ok, value)
	// Output:
	// true package main
}

func ExampleStore_HitRate() {
	s := cache.NewStore[string](cache.DefaultConfig())
	_ = s.Set("git_status", nil, "clean", cache.SetOptions{})

	s.Get("git_status", nil)
	s.Get("git_status", nil)
	s.Get("git_log", nil)

	fmt.Printf("%.3f\n", s.HitRate())
	// Output:
	// 0.667
}

func ExampleKey() {
	key, _ := cache.Key("list_dir", map[string]any{"dir_path": "/a"})
	fmt.Println(key)
	// Output:
	// list_dir:{"dir_path":"/a"}
}
