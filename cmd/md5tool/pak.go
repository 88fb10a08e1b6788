package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/md5skel/pkg/pk4"
)

func cmdPak(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: md5tool pak <list|extract|search> <file.pk4> ...")
		exit(1)
	}

	switch args[0] {
	case "list", "ls":
		cmdPakList(args[1:])
	case "extract", "x":
		cmdPakExtract(args[1:])
	case "search", "find":
		cmdPakSearch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown pak command: %s\n", args[0])
		exit(1)
	}
}

func openPak(path string) *pk4.Archive {
	archive, err := pk4.Open(path)
	if err != nil {
		fail("%v", err)
	}
	return archive
}

// matchEntry matches a glob against the base name, or a plain substring
// against the whole path.
func matchEntry(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	name = strings.ToLower(name)
	if matched, _ := filepath.Match(pattern, filepath.Base(name)); matched {
		return true
	}
	return !strings.ContainsAny(pattern, "*?[") && strings.Contains(name, pattern)
}

func cmdPakList(args []string) {
	fs := flag.NewFlagSet("pak list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	long := fs.Bool("l", false, "Show sizes")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: md5tool pak list [-l] [-n N] <file.pk4> [pattern]")
		exit(1)
	}

	archive := openPak(fs.Arg(0))
	defer archive.Close()

	pattern := strings.ToLower(fs.Arg(1))

	count := 0
	for _, f := range archive.List() {
		if !matchEntry(pattern, f) {
			continue
		}
		if *long {
			e, _ := archive.Stat(f)
			fmt.Printf("%10d %10d  %s\n", e.UncompressedSize, e.CompressedSize, f)
		} else {
			fmt.Println(f)
		}
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", count)
	}
}

func cmdPakExtract(args []string) {
	fs := flag.NewFlagSet("pak extract", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: md5tool pak extract <file.pk4> <path|pattern> [output_dir]")
		exit(1)
	}

	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	archive := openPak(fs.Arg(0))
	defer archive.Close()

	target := fs.Arg(1)
	var names []string
	if strings.ContainsAny(target, "*?[") {
		pattern := strings.ToLower(target)
		for _, f := range archive.List() {
			if matchEntry(pattern, f) {
				names = append(names, f)
			}
		}
	} else if archive.Contains(target) {
		names = []string{target}
	} else {
		fail("file not found: %s", target)
	}

	extracted := 0
	for _, f := range names {
		if !filepath.IsLocal(f) {
			fmt.Fprintf(os.Stderr, "Skipping unsafe path: %s\n", f)
			continue
		}
		data, err := archive.Read(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f, err)
			continue
		}

		// Preserve directory structure
		outputPath := filepath.Join(outputDir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			continue
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}

func cmdPakSearch(args []string) {
	fs := flag.NewFlagSet("pak search", flag.ExitOnError)
	limit := fs.Int("n", 50, "Limit results (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: md5tool pak search <file.pk4> <pattern>")
		exit(1)
	}

	archive := openPak(fs.Arg(0))
	defer archive.Close()

	pattern := strings.ToLower(fs.Arg(1))

	count := 0
	for _, f := range archive.List() {
		if !strings.Contains(strings.ToLower(f), pattern) {
			continue
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d matches, use -n 0 for all)\n", *limit)
			break
		}
	}

	if count == 0 {
		fmt.Fprintln(os.Stderr, "No files found")
	} else if *limit == 0 || count < *limit {
		fmt.Fprintf(os.Stderr, "\n(%d files found)\n", count)
	}
}
