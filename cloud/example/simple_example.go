// Command simple_example demonstrates pointing a database directory at
// an S3-mirrored vfs.FS and running a short workload against it.
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/oblsm-go/oblsm"
	oblsmaws "github.com/oblsm-go/oblsm/cloud/aws"
	"github.com/oblsm-go/oblsm/cloud/common"
	"github.com/oblsm-go/oblsm/vfs"
)

func main() {
	id := "5"

	baseFs, err := oblsmaws.NewCloudFS(vfs.Default(), common.CloudFsOption{BasePath: "project_" + id})
	if err != nil {
		log.Fatal(err)
	}

	db, err := oblsm.Open("/tmp/demo_"+id, oblsm.Options{FS: baseFs})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	data := []byte(strings.Repeat("world", 10000))
	for i := 0; i < 10000; i++ {
		key := []byte(fmt.Sprintf("hello_%d", i))
		if err := db.Put(key, data); err != nil {
			log.Fatal(err)
		}
	}

	key := []byte("hello_0")
	value, err := db.Get(key)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s %d bytes\n", key, len(value))
}
