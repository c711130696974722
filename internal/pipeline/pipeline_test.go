package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/aggregator"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/kafka"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
)

func recordLine(id, body string) string {
	fields := make([]string, forum.NumFields)
	fields[0] = id
	fields[1] = "title " + id
	fields[4] = body
	fields[8] = "2012-02-25 08:09:06.787181+00"
	return strings.Join(fields, "\t")
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

type memorySink struct {
	mu       sync.Mutex
	entries  []index.Entry
	closed   bool
	closeErr error
}

func (s *memorySink) Write(_ context.Context, e index.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) Close(context.Context) error {
	s.closed = true
	return s.closeErr
}

type topicReader struct {
	pending   []kafkago.Message
	committed int
	closed    bool
}

func (r *topicReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.pending) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := r.pending[0]
	r.pending = r.pending[1:]
	return m, nil
}

func (r *topicReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed += len(msgs)
	return nil
}

func (r *topicReader) Close() error {
	r.closed = true
	return nil
}

func kafkaSource(r *topicReader) *source.Kafka {
	return source.NewKafka("forum-records", func(h kafka.MessageHandler, opts ...kafka.ConsumerOption) *kafka.Consumer {
		return kafka.NewConsumerWithReader(r, "forum-records", 20*time.Millisecond, h, opts...)
	})
}

func topicMessages() []kafkago.Message {
	return []kafkago.Message{
		{Partition: 0, Offset: 0, Value: []byte(recordLine("7", "kafka python"))},
		{Partition: 1, Offset: 0, Value: []byte(recordLine("8", "kafka error"))},
	}
}

var wantEntries = []index.Entry{
	{Term: "error", RecordIDs: []int64{1, 3}},
	{Term: "handling", RecordIDs: []int64{3}},
	{Term: "list", RecordIDs: []int64{1, 2}},
	{Term: "python", RecordIDs: []int64{1, 2}},
}

func sources() []source.Source {
	return []source.Source{
		source.NewStream("a", strings.NewReader(lines(
			recordLine("1", "Python error in list"),
			recordLine("2", "list python python"),
		)), false),
		source.NewStream("b", strings.NewReader(lines(
			recordLine("3", "error handling"),
		)), false),
	}
}

func equalEntries(a, b []index.Entry) bool {
	return slices.EqualFunc(a, b, func(x, y index.Entry) bool {
		return x.Term == y.Term && slices.Equal(x.RecordIDs, y.RecordIDs)
	})
}

func TestMapEmitsPairsInOrder(t *testing.T) {
	var out strings.Builder
	input := lines(recordLine("1", "Python error"), recordLine("2", "the list"))
	stats, err := New(Options{}).Map(context.Background(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	want := "python\t1\nerror\t1\nlist\t2\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if stats.Records != 2 || stats.Occurrences != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMapMalformedPolicy(t *testing.T) {
	input := lines(recordLine("1", "alpha"), "badline", recordLine("2", "beta"))

	t.Run("fail", func(t *testing.T) {
		var out strings.Builder
		_, err := New(Options{}).Map(context.Background(), strings.NewReader(input), &out)
		if !errors.Is(err, apperrors.ErrMalformedRecord) {
			t.Fatalf("Map err = %v, want ErrMalformedRecord", err)
		}
		if apperrors.ExitCode(err) != apperrors.ExitBadInput {
			t.Errorf("exit code = %d", apperrors.ExitCode(err))
		}
	})

	t.Run("skip", func(t *testing.T) {
		var out strings.Builder
		m := metrics.New(nil)
		stats, err := New(Options{SkipMalformed: true, Metrics: m}).Map(context.Background(), strings.NewReader(input), &out)
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		if out.String() != "alpha\t1\nbeta\t2\n" {
			t.Errorf("output = %q", out.String())
		}
		if stats.Malformed != 1 || stats.Records != 2 {
			t.Errorf("stats = %+v", stats)
		}
		if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("malformed")); got != 1 {
			t.Errorf("malformed counter = %v", got)
		}
	})
}

func TestMapNonNumericID(t *testing.T) {
	input := lines(recordLine("abc", "alpha"))
	var out strings.Builder
	_, err := New(Options{}).Map(context.Background(), strings.NewReader(input), &out)
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("Map err = %v, want ErrMalformedRecord", err)
	}
}

func TestMapHeaderRowWithoutSkip(t *testing.T) {
	input := lines(recordLine("id", "body"), recordLine("4", "alpha"))
	var out strings.Builder
	stats, err := New(Options{}).Map(context.Background(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if out.String() != "alpha\t4\n" || stats.Malformed != 0 {
		t.Errorf("output = %q, stats = %+v", out.String(), stats)
	}
}

func TestReduceGroupsAndSkips(t *testing.T) {
	input := lines(
		"error\t3",
		"error\t1",
		"",
		"garbage line",
		"list\t2",
		"list\t1\textra",
		"list\t1",
		"python\tx",
		"python\t2",
		"python\t2",
		"python\t1",
	)
	var out strings.Builder
	m := metrics.New(nil)
	stats, err := New(Options{Metrics: m}).Reduce(context.Background(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := "error\t1,3\nlist\t1,2\npython\t1,2\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if stats.PairsSkipped != 3 || stats.Entries != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if got := testutil.ToFloat64(m.PairsSkippedTotal); got != 3 {
		t.Errorf("skipped counter = %v", got)
	}
}

func TestReduceSkipsOversizedLine(t *testing.T) {
	junk := strings.Repeat("x", 2*MaxPairLine+17)
	for name, input := range map[string]string{
		"middle": "a\t1\n" + junk + "\n" + "b\t2\n",
		"last":   "a\t1\nb\t2\n" + junk,
	} {
		t.Run(name, func(t *testing.T) {
			var out strings.Builder
			stats, err := New(Options{}).Reduce(context.Background(), strings.NewReader(input), &out)
			if err != nil {
				t.Fatalf("Reduce: %v", err)
			}
			if out.String() != "a\t1\nb\t2\n" {
				t.Errorf("output = %q", out.String())
			}
			if stats.PairsSkipped != 1 {
				t.Errorf("skipped = %d, want 1", stats.PairsSkipped)
			}
		})
	}
}

func TestReduceLastLineWithoutNewline(t *testing.T) {
	var out strings.Builder
	if _, err := New(Options{}).Reduce(context.Background(), strings.NewReader("a\t2\r\na\t1"), &out); err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if out.String() != "a\t1,2\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestReduceEmptyInput(t *testing.T) {
	var out strings.Builder
	stats, err := New(Options{}).Reduce(context.Background(), strings.NewReader(""), &out)
	if err != nil || out.Len() != 0 || stats.Entries != 0 {
		t.Errorf("Reduce(empty) = %q, %+v, %v", out.String(), stats, err)
	}
}

func TestReduceUnsortedFails(t *testing.T) {
	var out strings.Builder
	_, err := New(Options{OrderCheck: aggregator.CheckFail}).Reduce(context.Background(), strings.NewReader(lines("b\t1", "a\t2")), &out)
	if !errors.Is(err, apperrors.ErrUnsortedInput) {
		t.Fatalf("Reduce err = %v, want ErrUnsortedInput", err)
	}
}

func TestRunMemoryShuffle(t *testing.T) {
	dst := &memorySink{}
	stats, err := New(Options{Workers: 2}).Run(context.Background(), sources(), dst)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !equalEntries(dst.entries, wantEntries) {
		t.Errorf("entries = %+v, want %+v", dst.entries, wantEntries)
	}
	if stats.Records != 3 || stats.Entries != int64(len(wantEntries)) {
		t.Errorf("stats = %+v", stats)
	}
	if dst.closed {
		t.Error("Run must leave the sink open")
	}
}

func TestRunExternalShuffleMatchesMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Shuffle.Mode = config.ShuffleExternal
	cfg.Shuffle.RunSize = 2
	cfg.Shuffle.TempDir = t.TempDir()
	cfg.Shuffle.Compression = config.CompressionLZ4
	m := metrics.New(nil)
	engine, err := FromConfig(cfg, m)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	dst := &memorySink{}
	if _, err := engine.Run(context.Background(), sources(), dst); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !equalEntries(dst.entries, wantEntries) {
		t.Errorf("entries = %+v, want %+v", dst.entries, wantEntries)
	}
	if testutil.ToFloat64(m.SpillRunsTotal) == 0 {
		t.Error("expected spilled runs")
	}
}

func TestRunMatchesMapReduce(t *testing.T) {
	input := lines(
		recordLine("4", "zeta alpha"),
		recordLine("5", "alpha beta"),
		recordLine("6", "gamma zeta alpha"),
	)
	engine := New(Options{})

	var pairs strings.Builder
	if _, err := engine.Map(context.Background(), strings.NewReader(input), &pairs); err != nil {
		t.Fatalf("Map: %v", err)
	}
	sorted := strings.Split(strings.TrimSuffix(pairs.String(), "\n"), "\n")
	slices.SortStableFunc(sorted, func(a, b string) int {
		ta, _, _ := strings.Cut(a, "\t")
		tb, _, _ := strings.Cut(b, "\t")
		return strings.Compare(ta, tb)
	})
	var reduced strings.Builder
	if _, err := engine.Reduce(context.Background(), strings.NewReader(lines(sorted...)), &reduced); err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	dst := &memorySink{}
	src := []source.Source{source.NewStream("x", strings.NewReader(input), false)}
	if _, err := engine.Run(context.Background(), src, dst); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var direct strings.Builder
	for _, e := range dst.entries {
		direct.WriteString(index.FormatEntry(e) + "\n")
	}
	if direct.String() != reduced.String() {
		t.Errorf("Run = %q, Map|sort|Reduce = %q", direct.String(), reduced.String())
	}
}

func TestRunMalformedFails(t *testing.T) {
	src := []source.Source{source.NewStream("bad", strings.NewReader(lines(recordLine("1", "a"), "badline")), false)}
	dst := &memorySink{}
	_, err := New(Options{}).Run(context.Background(), src, dst)
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("Run err = %v, want ErrMalformedRecord", err)
	}
	if len(dst.entries) != 0 {
		t.Errorf("entries written after map failure: %+v", dst.entries)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := &memorySink{}
	_, err := New(Options{}).Run(ctx, sources(), dst)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if len(dst.entries) != 0 {
		t.Errorf("entries written after cancel: %+v", dst.entries)
	}
}

func TestFinishCommitsAfterSinkClose(t *testing.T) {
	r := &topicReader{pending: topicMessages()}
	srcs := append(sources(), kafkaSource(r))
	dst := &memorySink{}
	e := New(Options{Workers: 2})
	_, err := e.Run(context.Background(), srcs, dst)
	if r.committed != 0 {
		t.Fatalf("Run committed %d messages before the sink closed", r.committed)
	}
	if err := e.Finish(context.Background(), dst, srcs, err); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !dst.closed || r.committed != 2 || !r.closed {
		t.Errorf("closed=%v committed=%d reader closed=%v", dst.closed, r.committed, r.closed)
	}
}

func TestFinishFailedSinkLeavesOffsets(t *testing.T) {
	boom := errors.New("disk full")
	r := &topicReader{pending: topicMessages()}
	srcs := []source.Source{kafkaSource(r)}
	dst := &memorySink{closeErr: boom}
	e := New(Options{})
	_, err := e.Run(context.Background(), srcs, dst)
	if err := e.Finish(context.Background(), dst, srcs, err); !errors.Is(err, boom) {
		t.Fatalf("Finish err = %v, want sink error", err)
	}
	if r.committed != 0 {
		t.Errorf("committed %d messages after the sink failed", r.committed)
	}
	if !r.closed {
		t.Error("reader left open")
	}
}

func TestFinishFailedRunLeavesOffsets(t *testing.T) {
	r := &topicReader{pending: topicMessages()}
	srcs := []source.Source{kafkaSource(r)}
	dst := &memorySink{}
	if err := srcs[0].Read(context.Background(), func(forum.Record, error) error { return nil }); err != nil {
		t.Fatalf("Read: %v", err)
	}
	boom := errors.New("tokenize failed")
	if err := New(Options{}).Finish(context.Background(), dst, srcs, boom); !errors.Is(err, boom) {
		t.Fatalf("Finish err = %v", err)
	}
	if r.committed != 0 || !dst.closed || !r.closed {
		t.Errorf("committed=%d sink closed=%v reader closed=%v", r.committed, dst.closed, r.closed)
	}
}
