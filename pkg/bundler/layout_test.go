package bundler

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgeops/opsctl/pkg/collector"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(svc opsservice.Type, sub, name, data string) collector.File {
	return collector.File{Namespace: testNS, Service: svc, Subfolder: sub, Name: name, Data: []byte(data)}
}

func TestLayout_CollisionsAreDisambiguated(t *testing.T) {
	l := NewLayout()

	assert.Equal(t, testNS+"/broker/pod.a.broker.log", l.Add(file(opsservice.TypeBroker, "", "pod.a.broker.log", "1")))
	assert.Equal(t, testNS+"/broker/pod.a.broker-1.log", l.Add(file(opsservice.TypeBroker, "", "pod.a.broker.log", "2")))
	assert.Equal(t, testNS+"/broker/pod.a.broker-2.log", l.Add(file(opsservice.TypeBroker, "", "pod.a.broker.log", "3")))
	assert.Equal(t, testNS+"/broker/README", l.Add(file(opsservice.TypeBroker, "", "README", "x")))
	assert.Equal(t, testNS+"/broker/README-1", l.Add(file(opsservice.TypeBroker, "", "README", "y")))

	assert.Equal(t, 5, l.Len())
	assert.Equal(t, int64(5), l.Size())
}

func TestLayout_ConcurrentAdds(t *testing.T) {
	l := NewLayout()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add(file(opsservice.TypeOtel, "", "pod.x.yaml", "x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}

func TestLayout_Entries(t *testing.T) {
	l := NewLayout()
	l.Add(file(opsservice.TypeBroker, "", "broker.default.yaml", "b"))
	l.AddDir(testNS + "/broker/traces")
	l.AddDir("/")

	var names []string
	for _, e := range l.entries() {
		names = append(names, e.name)
	}
	assert.Equal(t, []string{
		testNS + "/",
		testNS + "/broker/",
		testNS + "/broker/broker.default.yaml",
		testNS + "/broker/traces/",
	}, names)
}

func TestWriteArchive_RoundTrip(t *testing.T) {
	l := NewLayout()
	l.Add(file(opsservice.TypeBroker, "", "broker.default.yaml", "kind: Broker\n"))
	l.Add(file(opsservice.TypeMeta, "", "bundle.yaml", "kind: SupportBundle\n"))
	l.AddDir(testNS + "/broker/traces")
	l.AddDir(testNS + "/otel")

	dest := filepath.Join(t.TempDir(), "nested", ArchiveName(testNow))
	size, err := writeArchive(l, dest, testNow)
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dest), ".support_bundle-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		assert.True(t, f.Modified.Equal(testNow), f.Name)
	}

	tree, err := Walk(dest)
	require.NoError(t, err)
	assert.Equal(t, map[string]*WalkEntry{
		"":                        {Folders: []string{testNS}},
		testNS:                    {Folders: []string{"broker", "meta", "otel"}},
		testNS + "/broker":        {Folders: []string{"traces"}, Files: []string{"broker.default.yaml"}},
		testNS + "/broker/traces": {},
		testNS + "/meta":          {Files: []string{"bundle.yaml"}},
		testNS + "/otel":          {},
	}, tree)
}

func TestWalk_MissingArchive(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestArchiveName(t *testing.T) {
	local := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "support_bundle_20260102T020405_aio.zip", ArchiveName(local))
}
