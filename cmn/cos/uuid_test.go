package cos_test

import (
	"testing"

	"github.com/shmbus/shmbus/cmn/cos"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("id generation", func() {
	BeforeEach(func() {
		cos.InitIDGen(42)
	})

	It("generates alpha-leading, alphanumeric-trailing port ids", func() {
		for i := 0; i < 64; i++ {
			id := cos.GenUniquePortIDText()
			Expect(cos.IsValidUniquePortIDText(id)).To(BeTrue())
		}
	})

	It("rejects service names with disallowed characters", func() {
		Expect(cos.ValidateServiceName("demo/data")).To(Succeed())
		Expect(cos.ValidateServiceName("demo data")).NotTo(Succeed())
		Expect(cos.ValidateServiceName("")).NotTo(Succeed())
	})

	It("derives node ids that pass their own validator", func() {
		id := cos.GenNodeID()
		Expect(cos.ValidateNodeID(id)).To(Succeed())
	})
})

func TestErrs(t *testing.T) {
	var e cos.Errs
	e.Add(cos.NewErrNotFound("service %q", "x"))
	e.Add(cos.NewErrNotFound("service %q", "x")) // duplicate, ignored
	e.Add(cos.NewErrNotFound("service %q", "y"))
	if e.Cnt() != 2 {
		t.Fatalf("expected 2 distinct errors, got %d", e.Cnt())
	}
}
