package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/query"
	"github.com/cppla/postboard/source"
)

const PostsCtlVersion = "0.1.0"

const usage = `Posts control.

The default api_url is https://jsonplaceholder.typicode.com

Usage:
    postsctl list [--api_url=<api_url>] [--search=<text>] [--sort=<column>]
        [--order=<order>] [--page=<page>] [--limit=<limit>] [--lang=<tag>]
    postsctl get [--api_url=<api_url>] <id>
    postsctl import [--api_url=<api_url>] --driver=<driver> --dsn=<dsn>
    postsctl flush-cache --redis=<addr> [--redis_db=<db>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --api_url=<api_url>  Remote posts API.
    --search=<text>      Keep posts whose title or body contains text.
    --sort=<column>      id, title or createdAt [default: id].
    --order=<order>      asc or desc [default: asc].
    --page=<page>        Page to print [default: 1].
    --limit=<limit>      Posts per page [default: 10].
    --lang=<tag>         Collation language for title ordering [default: en].
    --driver=<driver>    mysql, postgres or sqlite.
    --dsn=<dsn>          Database connection string.
    --redis=<addr>       Redis host:port holding the snapshot cache.
    --redis_db=<db>      Redis database [default: 0].`

func main() {
	log, _ := zap.NewProduction()
	defer func() { _ = log.Sync() }()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], PostsCtlVersion)
	if err != nil {
		log.Fatal("invalid arguments", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if list_, _ := opts.Bool("list"); list_ {
		err = list(ctx, opts)
	} else if get_, _ := opts.Bool("get"); get_ {
		err = get(ctx, opts)
	} else if import_, _ := opts.Bool("import"); import_ {
		err = importPosts(ctx, opts, log)
	} else if flush_, _ := opts.Bool("flush-cache"); flush_ {
		err = flushCache(ctx, opts, log)
	}
	if err != nil {
		log.Fatal("command failed", zap.Error(err))
	}
}

func remote(opts docopt.Opts) *source.HTTP {
	apiURL, _ := opts.String("--api_url")
	return source.NewHTTP(apiURL, 30*time.Second)
}

// list prints one page of the derived view as JSON.
func list(ctx context.Context, opts docopt.Opts) error {
	search, _ := opts.String("--search")
	sortStr, _ := opts.String("--sort")
	orderStr, _ := opts.String("--order")
	pageStr, _ := opts.String("--page")
	limitStr, _ := opts.String("--limit")
	lang, _ := opts.String("--lang")

	col, err := models.ParseSortColumn(sortStr)
	if err != nil {
		return err
	}
	order, err := models.ParseSortOrder(orderStr)
	if err != nil {
		return err
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		return err
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return err
	}

	posts, err := remote(opts).FetchAll(ctx)
	if err != nil {
		return err
	}
	view := query.NewEngine(lang).Apply(posts, models.ViewParams{SortBy: col, SortOrder: order, Search: search})
	return printJSON(query.Paginate(view, page, limit))
}

func get(ctx context.Context, opts docopt.Opts) error {
	idStr, _ := opts.String("<id>")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return err
	}
	post, err := remote(opts).FetchOne(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(post)
}

// importPosts copies the remote collection into a posts table for the sql source.
func importPosts(ctx context.Context, opts docopt.Opts, log *zap.Logger) error {
	driver, _ := opts.String("--driver")
	dsn, _ := opts.String("--dsn")

	posts, err := remote(opts).FetchAll(ctx)
	if err != nil {
		return err
	}
	db, err := config.OpenDatabase(driver, dsn, "warn")
	if err != nil {
		return err
	}
	sqlSrc := source.NewSQL(db)
	if err := sqlSrc.Migrate(); err != nil {
		return err
	}
	n, err := sqlSrc.Import(ctx, posts)
	if err != nil {
		return err
	}
	log.Info("import done", zap.Int("fetched", len(posts)), zap.Int64("rows", n))
	return nil
}

func flushCache(ctx context.Context, opts docopt.Opts, log *zap.Logger) error {
	addr, _ := opts.String("--redis")
	dbStr, _ := opts.String("--redis_db")
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		return err
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, DB: db, DialTimeout: 3 * time.Second})
	defer rc.Close()
	if err := rc.Ping(ctx).Err(); err != nil {
		return err
	}
	source.NewCached(nil, rc, 0, log).Invalidate(ctx)
	log.Info("snapshot cache flushed", zap.String("addr", addr))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
