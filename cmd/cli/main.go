// Command bptreekv-cli is an interactive shell over a database file,
// grounded on intellect4all-storage-engines's cmd/demo but reworked as a
// REPL driving this module's own Database/Bucket API instead of printing
// a fixed scripted demo.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/intellect4all/bptreekv/common"
	"github.com/intellect4all/bptreekv/internal/logger"
	"github.com/intellect4all/bptreekv/kvstore"
)

func main() {
	path := flag.String("db", "", "database file to open (created if --create is set)")
	create := flag.Bool("create", false, "create the database file instead of opening it")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *path == "" {
		fmt.Println("usage: bptreekv-cli --db PATH [--create] [--verbose]")
		os.Exit(2)
	}

	opt := kvstore.DefaultOption()
	level := "info"
	if *verbose {
		level = "debug"
	}
	opt.Logger = logger.New(logger.Config{Level: level, Pretty: true})

	var db *kvstore.Database
	var err error
	if *create {
		db, err = kvstore.Create(*path, opt)
	} else {
		db, err = kvstore.Open(*path, opt)
	}
	if err != nil {
		fmt.Println("open failed:", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("bptreekv shell — %s (type 'help' for commands)\n", *path)
	repl(db)
}

func repl(db *kvstore.Database) {
	var bucket *kvstore.Bucket
	scanner := bufio.NewScanner(os.Stdin)

	prompt := func() {
		if bucket != nil {
			fmt.Printf("%s> ", bucket.Name())
		} else {
			fmt.Print("> ")
		}
	}

	prompt()
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			prompt()
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printHelp()
		case "quit", "exit":
			return
		case "create-bucket":
			if len(args) != 1 {
				fmt.Println("usage: create-bucket NAME")
				break
			}
			b, err := db.CreateBucket(args[0])
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			bucket = b
			fmt.Printf("created and switched to bucket %q\n", args[0])
		case "bucket", "use":
			if len(args) != 1 {
				fmt.Println("usage: bucket NAME")
				break
			}
			b, err := db.Bucket(args[0])
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			bucket = b
			fmt.Printf("switched to bucket %q\n", args[0])
		case "delete-bucket":
			if len(args) != 1 {
				fmt.Println("usage: delete-bucket NAME")
				break
			}
			if err := db.DeleteBucket(args[0]); err != nil {
				fmt.Println("error:", err)
				break
			}
			if bucket != nil && bucket.Name() == args[0] {
				bucket = nil
			}
			fmt.Println("ok")
		case "put":
			if bucket == nil || len(args) < 2 {
				fmt.Println("usage: bucket NAME first, then: put KEY VALUE...")
				break
			}
			err := bucket.Put([]byte(args[0]), []byte(strings.Join(args[1:], " ")))
			printResult(err)
		case "update":
			if bucket == nil || len(args) < 2 {
				fmt.Println("usage: bucket NAME first, then: update KEY VALUE...")
				break
			}
			err := bucket.Update([]byte(args[0]), []byte(strings.Join(args[1:], " ")))
			printResult(err)
		case "get":
			if bucket == nil || len(args) != 1 {
				fmt.Println("usage: bucket NAME first, then: get KEY")
				break
			}
			val, err := bucket.Get([]byte(args[0]))
			if err != nil {
				printResult(err)
				break
			}
			fmt.Println(string(val))
		case "del":
			if bucket == nil || len(args) != 1 {
				fmt.Println("usage: bucket NAME first, then: del KEY")
				break
			}
			printResult(bucket.Del([]byte(args[0])))
		case "scan":
			if bucket == nil {
				fmt.Println("usage: bucket NAME first, then: scan [LIMIT]")
				break
			}
			limit := -1
			if len(args) == 1 {
				if n, err := strconv.Atoi(args[0]); err == nil {
					limit = n
				}
			}
			scan(bucket, limit)
		case "stats":
			printStats(db)
		case "sync":
			printResult(db.Sync())
		default:
			fmt.Printf("unknown command %q (try 'help')\n", cmd)
		}
		prompt()
	}
}

func scan(bucket *kvstore.Bucket, limit int) {
	it, err := bucket.Begin()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	count := 0
	for !it.Done() {
		if limit >= 0 && count >= limit {
			fmt.Println("...")
			return
		}
		fmt.Printf("%s = %s\n", it.Key(), it.Val())
		it.Next()
		count++
	}
}

func printStats(db *kvstore.Database) {
	stats, err := db.Stats()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("pages=%d cache=%d hits=%d misses=%d reads=%d writes=%d free_extents=%d free_bytes=%d file_bytes=%d\n",
		stats.NumPages, stats.CachePages, stats.CacheHits, stats.CacheMisses,
		stats.PageReads, stats.PageWrites, stats.FreeExtents, stats.FreeBytes, stats.FileSizeBytes)
}

func printResult(err error) {
	if err == nil {
		fmt.Println("ok")
		return
	}
	if errors.Is(err, common.ErrKeyNotFound) {
		fmt.Println("not found")
		return
	}
	fmt.Println("error:", err)
}

func printHelp() {
	fmt.Println(`commands:
  create-bucket NAME        create a bucket and switch to it
  bucket NAME                switch to an existing bucket
  delete-bucket NAME        delete a bucket and all its records
  put KEY VALUE...           insert a new key (fails if it exists)
  update KEY VALUE...        overwrite an existing key (fails if missing)
  get KEY                    fetch a value
  del KEY                    delete a key
  scan [LIMIT]                iterate the current bucket in key order
  stats                      print cache/freelist/file counters
  sync                       flush and fsync
  quit                       exit`)
}
