package commands

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

// syncBuffer is an output buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func parse(t *testing.T, args ...string) (*kong.Context, *CLI, *syncBuffer) {
	t.Helper()
	return parseContext(t, context.Background(), args...)
}

func parseContext(t *testing.T, ctx context.Context, args ...string) (*kong.Context, *CLI, *syncBuffer) {
	t.Helper()
	cli := &CLI{}
	out := &syncBuffer{}
	parser, err := kong.New(cli,
		kong.Name("assetpipe"),
		kong.Vars{"version": "test"},
		kong.Bind(&Global{Out: out}, cli),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Writers(out, out),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx, cli, out
}

// markupOnly is a project that needs no external tools to build.
func markupOnly(t *testing.T) *testutil.Project {
	t.Helper()
	return testutil.NewProject(t).
		WriteString("src/partials/nav.html", "<nav>@@section</nav>").
		WriteString("src/index.html", `<body>@@include('partials/nav.html', {"section": "docs"})</body>`).
		Write("src/fonts/Inter.ttf", testutil.TTF())
}

func TestDefaultCommandIsDev(t *testing.T) {
	kctx, cli, _ := parse(t)
	assert.Equal(t, "dev", kctx.Command())
	assert.Equal(t, config.Development, cli.Mode())

	_, cli, _ = parse(t, "--production")
	assert.Equal(t, config.Production, cli.Mode())
}

func TestBuildCommand(t *testing.T) {
	p := markupOnly(t)
	kctx, _, out := parse(t, "build", "-C", p.Root)
	require.NoError(t, kctx.Run())

	testutil.NewFileAssertions(t, p.Path("dist")).
		AssertFileContains("index.html", "<nav>docs</nav>").
		AssertFileExists("fonts/Inter.woff2")
	assert.Contains(t, out.String(), "markup")
	assert.Contains(t, out.String(), "(development)")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestProductionWithoutCommandBuildsThenServes(t *testing.T) {
	p := markupOnly(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	port := freePort(t)
	kctx, cli, out := parseContext(t, ctx, "--production", "-C", p.Root, "-p", strconv.Itoa(port))
	assert.Equal(t, config.Production, cli.Mode())

	done := make(chan error, 1)
	go func() { done <- kctx.Run() }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Serving ")
	}, 10*time.Second, 20*time.Millisecond)
	testutil.NewFileAssertions(t, p.Path("dist")).
		AssertFileContains("index.html", "<nav>docs</nav>").
		AssertFileExists("fonts/Inter.woff2")

	url := strings.TrimSpace(strings.TrimPrefix(out.String()[strings.Index(out.String(), "Serving "):], "Serving "))
	assert.Contains(t, url, ":"+strconv.Itoa(port))
	resp, err := http.Get(url + "index.html")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Contains(t, string(body), "<nav>docs</nav>")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev command did not stop after cancellation")
	}
}

func TestBuildCommandRejectsBadConfig(t *testing.T) {
	p := testutil.NewProject(t).WriteString("assetpipe.yaml", "server:\n  port: 0\n")
	kctx, _, _ := parse(t, "build", "-C", p.Root)
	require.Error(t, kctx.Run())
}

func TestGraphCommand(t *testing.T) {
	p := testutil.NewProject(t)

	kctx, _, out := parse(t, "graph", "-C", p.Root)
	require.NoError(t, kctx.Run())
	assert.Contains(t, out.String(), "build (series)\n  - clean\n")
	assert.Contains(t, out.String(), "    pictures (sequence)\n      - images\n      - sprites\n")
	assert.Contains(t, out.String(), "\norder: clean -> ")
	order := out.String()[strings.Index(out.String(), "order: "):]
	assert.Less(t, strings.Index(order, "images"), strings.Index(order, "sprites"))

	kctx, _, out = parse(t, "graph", "--format", "dot", "-C", p.Root)
	require.NoError(t, kctx.Run())
	assert.Contains(t, out.String(), `"images" -> "sprites"`)
}
