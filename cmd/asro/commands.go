package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/asro"
	"github.com/hupe1980/asro/blobstore"
	minioblob "github.com/hupe1980/asro/blobstore/minio"
	"github.com/hupe1980/asro/blobstore/s3"
	"github.com/hupe1980/asro/container"
)

func fileArg(c *cli.Context) (string, error) {
	path := c.Args().First()
	if path == "" {
		return "", fmt.Errorf("missing FILE argument")
	}
	return path, nil
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List the entries of a container",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			f, err := openReadOnly(c, path)
			if err != nil {
				return err
			}
			defer f.Close()
			return listEntries(c.App.Writer, f)
		},
	}
}

func listEntries(out io.Writer, f *container.File) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCLASS\tSIZE\tSTORED\tRATIO\tOFFSET")
	for e := range f.Entries() {
		ratio := 1.0
		if e.DataLength > 0 {
			ratio = float64(e.FileLength) / float64(e.DataLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%d\n", e.Key, e.Class, e.DataLength, e.FileLength, ratio, e.Offset)
	}
	return w.Flush()
}

func mapCommand() *cli.Command {
	return &cli.Command{
		Name:      "map",
		Usage:     "Print the layout of a container and check it",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			f, err := openReadOnly(c, path)
			if err != nil {
				return err
			}
			defer f.Close()

			layout, err := f.Map()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OFFSET\tLENGTH\tKIND\tKEY")
			for _, s := range layout.Spans {
				key := ""
				if s.Entry != nil {
					key = s.Entry.Key.String()
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", s.Offset, s.Length, s.Kind, key)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return layout.Check()
		},
	}
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Write a payload to stdout",
		ArgsUsage: "FILE NAME",
		Flags:     keyFlags(),
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			f, err := openReadOnly(c, path)
			if err != nil {
				return err
			}
			defer f.Close()

			k, err := resolveKey(c, f)
			if err != nil {
				return err
			}
			data, err := f.Read(k)
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete an element (with its subs) or a single sub",
		ArgsUsage: "FILE NAME",
		Flags:     keyFlags(),
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			opts, err := registryOptions(c)
			if err != nil {
				return err
			}
			reg := asro.NewRegistry(opts...)
			defer reg.Close()

			h, err := reg.Acquire(path, false)
			if err != nil {
				return err
			}
			f, err := h.File()
			if err != nil {
				return err
			}
			k, err := resolveKey(c, f)
			if err != nil {
				_ = reg.Release(h)
				return err
			}
			if err := f.Delete(k); err != nil {
				_ = reg.Release(h)
				return err
			}
			// Removes the file if it is now empty.
			return reg.Release(h)
		},
	}
}

type checkResult struct {
	path    string
	entries int
	err     error
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Verify the layout of one or more containers",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: runtime.NumCPU(), Usage: "Files checked in parallel"},
		},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return fmt.Errorf("missing FILE argument")
			}

			results := make([]checkResult, len(paths))
			var g errgroup.Group
			g.SetLimit(max(c.Int("jobs"), 1))
			for i, path := range paths {
				g.Go(func() error {
					results[i] = checkFile(c, path)
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(c.App.Writer, "%s: FAIL: %v\n", r.path, r.err)
					continue
				}
				fmt.Fprintf(c.App.Writer, "%s: ok (%d entries)\n", r.path, r.entries)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(paths))
			}
			return nil
		},
	}
}

func checkFile(c *cli.Context, path string) checkResult {
	r := checkResult{path: path}
	f, err := openReadOnly(c, path)
	if err != nil {
		r.err = err
		return r
	}
	defer f.Close()

	r.entries = f.Len()
	layout, err := f.Map()
	if err == nil {
		err = layout.Check()
	}
	if err == nil {
		// Every payload must read back and decompress.
		for e := range f.Entries() {
			if _, err = f.Read(e.Key); err != nil {
				break
			}
		}
	}
	r.err = err
	return r
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Upload a committed container to S3 or MinIO",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Value: "s3", Usage: "Object store backend (s3, minio)", EnvVars: []string{"ASRO_BACKEND"}},
			&cli.StringFlag{Name: "bucket", Required: true, Usage: "Target bucket", EnvVars: []string{"ASRO_BUCKET"}},
			&cli.StringFlag{Name: "prefix", Usage: "Key prefix inside the bucket", EnvVars: []string{"ASRO_PREFIX"}},
			&cli.StringFlag{Name: "key", Usage: "Blob name (defaults to the file's base name)"},
			&cli.StringFlag{Name: "endpoint", Usage: "S3-compatible endpoint", EnvVars: []string{"ASRO_ENDPOINT"}},
			&cli.StringFlag{Name: "region", Usage: "Bucket region", EnvVars: []string{"ASRO_REGION", "AWS_REGION"}},
			&cli.StringFlag{Name: "access-key", Usage: "MinIO access key", EnvVars: []string{"ASRO_ACCESS_KEY"}},
			&cli.StringFlag{Name: "secret-key", Usage: "MinIO secret key", EnvVars: []string{"ASRO_SECRET_KEY"}},
			&cli.BoolFlag{Name: "insecure", Usage: "Use plain HTTP for MinIO", EnvVars: []string{"ASRO_INSECURE"}},
		},
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			ctx := c.Context
			store, err := newStore(ctx, c)
			if err != nil {
				return err
			}
			name := c.String("key")
			if name == "" {
				name = filepath.Base(path)
			}
			logger, err := newLogger(c)
			if err != nil {
				return err
			}
			n, err := asro.Archive(ctx, path, store, name, asro.WithLogger(logger))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "uploaded %s (%d bytes)\n", name, n)
			return nil
		},
	}
}

func newStore(ctx context.Context, c *cli.Context) (blobstore.BlobStore, error) {
	switch c.String("backend") {
	case "s3":
		opts := []s3.Option{s3.WithPrefix(c.String("prefix"))}
		if r := c.String("region"); r != "" {
			opts = append(opts, s3.WithRegion(r))
		}
		if ep := c.String("endpoint"); ep != "" {
			opts = append(opts, s3.WithEndpoint(ep))
		}
		return s3.New(ctx, c.String("bucket"), opts...)
	case "minio":
		endpoint := c.String("endpoint")
		if endpoint == "" {
			return nil, fmt.Errorf("--endpoint is required for the minio backend")
		}
		client, err := minio.New(endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.String("access-key"), c.String("secret-key"), ""),
			Secure: !c.Bool("insecure"),
			Region: c.String("region"),
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, c.String("bucket"), c.String("prefix")), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.String("backend"))
	}
}
