package wrap_test

import (
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tracemark/capture"
	"github.com/sarchlab/tracemark/idgen"
	"github.com/sarchlab/tracemark/timeline"
	"github.com/sarchlab/tracemark/wrap"
)

// fakeKVClient is a minimal data-store client exposing the same operation in
// all three completion styles.
type fakeKVClient struct {
	*wrap.Table

	data    map[string]string
	pending []*wrap.Future
}

func newFakeKVClient() *fakeKVClient {
	c := &fakeKVClient{
		Table: wrap.NewTable("kvstore"),
		data:  map[string]string{"user:42": "alice"},
	}

	c.Register("Get", func(args ...interface{}) (interface{}, error) {
		value, ok := c.data[args[0].(string)]
		if !ok {
			return nil, errors.New("key not found")
		}
		return value, nil
	})

	c.Register("GetAsync", func(args ...interface{}) (interface{}, error) {
		f := wrap.NewFuture()
		c.pending = append(c.pending, f)
		return f, nil
	})

	c.Register("GetCB", func(args ...interface{}) (interface{}, error) {
		cb := args[len(args)-1].(wrap.Callback)
		value, ok := c.data[args[0].(string)]
		if !ok {
			cb(errors.New("key not found"), nil)
			return nil, nil
		}
		cb(nil, value)
		return nil, nil
	})

	c.Register("Panic", func(args ...interface{}) (interface{}, error) {
		panic("store exploded")
	})

	return c
}

// resolvePending settles the i-th outstanding GetAsync future.
func (c *fakeKVClient) resolvePending(i int, value string) {
	c.pending[i].Resolve(value)
}

func markNames(entries []timeline.Entry) []string {
	var names []string
	for _, e := range entries {
		if e.Kind == timeline.KindMark {
			names = append(names, e.Name)
		}
	}
	return names
}

var _ = Describe("Engine", func() {
	var (
		tl     *timeline.List
		store  *capture.Store
		engine *wrap.Engine
		client *fakeKVClient
	)

	BeforeEach(func() {
		tl = timeline.NewList(nil)
		store = capture.NewStore()
		client = newFakeKVClient()
		engine = wrap.NewEngine(tl, store).
			WithIDGenerator(idgen.NewSequential()).
			WithAutoMeasure(false)
	})

	Context("when validating collaborators", func() {
		It("should refuse to wrap without a timeline", func() {
			e := wrap.NewEngine(nil, store)

			Expect(e.Wrap(client)).To(BeFalse())
			Expect(e.Wrapped(client, "Get")).To(BeFalse())

			_, err := client.Call("Get", "user:42")
			Expect(err).ToNot(HaveOccurred())
			Expect(tl.Entries()).To(BeEmpty())
			Expect(store.Len()).To(Equal(0))
		})

		It("should refuse to wrap without a record store", func() {
			e := wrap.NewEngine(tl, nil)

			Expect(e.Wrap(client)).To(BeFalse())
			Expect(e.Wrapped(client, "Get")).To(BeFalse())
		})

		It("should refuse to wrap a nil target", func() {
			Expect(engine.Wrap(nil)).To(BeFalse())
		})
	})

	Context("when the call returns synchronously", func() {
		BeforeEach(func() {
			Expect(engine.Wrap(client, "Get")).To(BeTrue())
		})

		It("should emit one start and one end mark with one record", func() {
			result, err := client.Call("Get", "user:42")

			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal("alice"))

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-Get-1",
				"end:kvstore-Get-1",
			}))

			record, ok := store.Get("1")
			Expect(ok).To(BeTrue())
			Expect(record.Name).To(Equal("kvstore-Get-1"))
			Expect(record.Request).To(
				Equal(map[string]interface{}{"key": "user:42"}))
			Expect(record.Response).To(Equal("alice"))
			Expect(record.Error).To(BeEmpty())
		})

		It("should capture the error and re-deliver it unchanged", func() {
			_, err := client.Call("Get", "user:99")

			Expect(err).To(MatchError("key not found"))

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-Get-1",
				"end:kvstore-Get-1",
			}))

			record, _ := store.Get("1")
			Expect(record.Error).To(Equal("key not found"))
			Expect(record.Response).To(BeNil())
		})

		It("should emit the end mark before a panic reaches the caller",
			func() {
				Expect(engine.Wrap(client, "Panic")).To(BeTrue())

				Expect(func() {
					_, _ = client.Call("Panic")
				}).To(PanicWith("store exploded"))

				Expect(markNames(tl.Entries())).To(ContainElement(
					"end:kvstore-Panic-1"))

				record, _ := store.Get("1")
				Expect(record.Error).To(ContainSubstring("store exploded"))
			})
	})

	Context("when the call returns a deferred value", func() {
		BeforeEach(func() {
			Expect(engine.Wrap(client, "GetAsync")).To(BeTrue())
		})

		It("should end the mark only when the future resolves", func() {
			result, err := client.Call("GetAsync", "user:42")
			Expect(err).ToNot(HaveOccurred())

			future, ok := result.(*wrap.Future)
			Expect(ok).To(BeTrue(),
				"the deferred value must reach the caller unchanged")

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-GetAsync-1",
			}))

			client.resolvePending(0, "alice")

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-GetAsync-1",
				"end:kvstore-GetAsync-1",
			}))

			value, futureErr := future.Result()
			Expect(futureErr).ToNot(HaveOccurred())
			Expect(value).To(Equal("alice"))

			record, _ := store.Get("1")
			Expect(record.Response).To(Equal("alice"))
		})

		It("should record the error when the future rejects", func() {
			_, err := client.Call("GetAsync", "user:99")
			Expect(err).ToNot(HaveOccurred())

			client.pending[0].Reject(errors.New("store offline"))

			record, _ := store.Get("1")
			Expect(record.Error).To(Equal("store offline"))
			Expect(markNames(tl.Entries())).To(ContainElement(
				"end:kvstore-GetAsync-1"))
		})

		It("should keep overlapping calls independent", func() {
			_, _ = client.Call("GetAsync", "user:1")
			_, _ = client.Call("GetAsync", "user:2")

			// Complete the second call first.
			client.resolvePending(1, "bob")
			client.resolvePending(0, "alice")

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-GetAsync-1",
				"start:kvstore-GetAsync-2",
				"end:kvstore-GetAsync-2",
				"end:kvstore-GetAsync-1",
			}))

			first, _ := store.Get("1")
			second, _ := store.Get("2")
			Expect(first.Response).To(Equal("alice"))
			Expect(second.Response).To(Equal("bob"))
			Expect(first.Request).To(
				Equal(map[string]interface{}{"key": "user:1"}))
			Expect(second.Request).To(
				Equal(map[string]interface{}{"key": "user:2"}))
		})
	})

	Context("when the call takes a trailing callback", func() {
		BeforeEach(func() {
			Expect(engine.Wrap(client, "GetCB")).To(BeTrue())
		})

		It("should complete before the original callback runs", func() {
			var seenMarks []string
			var cbErr error
			var cbResult interface{}

			_, err := client.Call("GetCB", "user:42",
				wrap.Callback(func(err error, result interface{}) {
					seenMarks = markNames(tl.Entries())
					cbErr = err
					cbResult = result
				}))

			Expect(err).ToNot(HaveOccurred())
			Expect(cbErr).ToNot(HaveOccurred())
			Expect(cbResult).To(Equal("alice"))
			Expect(seenMarks).To(Equal([]string{
				"start:kvstore-GetCB-1",
				"end:kvstore-GetCB-1",
			}), "the end mark must be recorded before the caller's callback")

			record, _ := store.Get("1")
			Expect(record.Response).To(Equal("alice"))
			Expect(record.Request).To(
				Equal(map[string]interface{}{"key": "user:42"}))
		})

		It("should pass the error slot through unchanged", func() {
			var cbErr error

			_, _ = client.Call("GetCB", "user:99",
				wrap.Callback(func(err error, result interface{}) {
					cbErr = err
				}))

			Expect(cbErr).To(MatchError("key not found"))

			record, _ := store.Get("1")
			Expect(record.Error).To(Equal("key not found"))
		})

		It("should accept a plain function as the callback", func() {
			var cbResult interface{}

			_, _ = client.Call("GetCB", "user:42",
				func(err error, result interface{}) {
					cbResult = result
				})

			Expect(cbResult).To(Equal("alice"))
			Expect(store.Len()).To(Equal(1))
		})

		It("should prefer the callback over a deferred return", func() {
			client.Register("Both", func(args ...interface{}) (interface{}, error) {
				cb := args[len(args)-1].(wrap.Callback)
				cb(nil, "via callback")

				f := wrap.NewFuture()
				f.Resolve("via future")
				return f, nil
			})
			Expect(engine.Wrap(client, "Both")).To(BeTrue())

			_, err := client.Call("Both", "user:42",
				wrap.Callback(func(err error, result interface{}) {}))
			Expect(err).ToNot(HaveOccurred())

			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-Both-1",
				"end:kvstore-Both-1",
			}), "exactly one end mark even when both styles are present")

			record, _ := store.Get("1")
			Expect(record.Response).To(Equal("via callback"))
		})
	})

	Context("when wrapping repeatedly", func() {
		It("should skip methods that are already wrapped", func() {
			Expect(engine.Wrap(client, "Get")).To(BeTrue())
			Expect(engine.Wrap(client, "Get")).To(BeTrue())

			_, _ = client.Call("Get", "user:42")

			Expect(markNames(tl.Entries())).To(HaveLen(2),
				"double wrapping would duplicate every mark")
			Expect(store.Len()).To(Equal(1))
		})

		It("should report wrap state through the side table", func() {
			Expect(engine.Wrapped(client, "Get")).To(BeFalse())

			engine.Wrap(client, "Get")

			Expect(engine.Wrapped(client, "Get")).To(BeTrue())
			Expect(engine.Wrapped(client, "GetAsync")).To(BeFalse())
		})

		It("should skip unknown method names with a notice", func() {
			Expect(engine.Wrap(client, "Get", "NoSuchMethod")).To(BeTrue())
			Expect(engine.Wrapped(client, "NoSuchMethod")).To(BeFalse())
		})

		It("should wrap every method when none are named", func() {
			Expect(engine.Wrap(client)).To(BeTrue())

			for _, name := range client.MethodNames() {
				Expect(engine.Wrapped(client, name)).To(BeTrue())
			}
		})
	})

	Context("when unwrapping", func() {
		It("should restore the original behavior", func() {
			engine.Wrap(client, "Get")
			_, _ = client.Call("Get", "user:42")

			engine.Unwrap()

			result, err := client.Call("Get", "user:42")
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal("alice"))

			Expect(markNames(tl.Entries())).To(HaveLen(2),
				"no new marks after unwrap")
			Expect(store.Len()).To(Equal(1), "no new records after unwrap")
			Expect(engine.Wrapped(client, "Get")).To(BeFalse())
		})

		It("should be a no-op when nothing is wrapped", func() {
			Expect(engine.Unwrap).ToNot(Panic())
			Expect(engine.Unwrap).ToNot(Panic())
			Expect(tl.Entries()).To(BeEmpty())
		})

		It("should allow wrapping again afterwards", func() {
			engine.Wrap(client, "Get")
			engine.Unwrap()

			Expect(engine.Wrap(client, "Get")).To(BeTrue())

			_, _ = client.Call("Get", "user:42")
			Expect(store.Len()).To(Equal(1))
		})
	})

	Context("when a filter is configured", func() {
		It("should drop the record but keep the marks", func() {
			store.WithFilter(func(r *capture.Record) *capture.Record {
				return nil
			})
			engine.Wrap(client, "Get")

			_, _ = client.Call("Get", "user:42")

			Expect(store.Len()).To(Equal(0))
			Expect(markNames(tl.Entries())).To(Equal([]string{
				"start:kvstore-Get-1",
				"end:kvstore-Get-1",
			}))
		})
	})

	Context("when auto-measuring is on", func() {
		It("should append a measure per completed call", func() {
			engine.WithAutoMeasure(true)
			engine.Wrap(client, "Get")

			_, _ = client.Call("Get", "user:42")

			entries := tl.Entries()
			Expect(entries).To(HaveLen(3))
			measure := entries[2]
			Expect(measure.Kind).To(Equal(timeline.KindMeasure))
			Expect(measure.Name).To(Equal("kvstore-Get-1"))
			Expect(measure.Duration >= 0).To(BeTrue())
		})
	})

	Context("when reporting notices", func() {
		It("should not write through the default logger", func() {
			var err error
			engine.WithLogger(log.New(GinkgoWriter, "", 0))
			engine.Wrap(client, "Missing")

			_, err = client.Call("Get", "user:42")
			Expect(err).ToNot(HaveOccurred())
		})
	})
})
