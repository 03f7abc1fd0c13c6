package sidcodec

// BuildOptions controls BuildSchemaTables.
type BuildOptions struct {
	// VendorPrefixes overrides defaultVendorPrefixes for the vendor
	// typedef merge.
	VendorPrefixes []string

	// Verbose turns on the SID-collision log line mergeSidFiles emits via
	// glog.V(1), so it also needs glog verbosity 1 or higher to appear;
	// off by default to keep a normal build quiet.
	Verbose bool

	// NoCache skips both loading and writing the schema cache file,
	// forcing a full parse of every .sid/.yang file under cacheDir.
	NoCache bool
}

// BuildSchemaTables loads and merges every .sid/.yang file under cacheDir
// into one Tables value, transparently using the on-disk cache when it is
// present and fresh.
func BuildSchemaTables(cacheDir string, opts BuildOptions) (*Tables, error) {
	return buildTables(cacheDir, opts)
}

// ExtractSidQueries is the entry point for the fetch verb's SID-array query
// form: it parses the same operator YAML document EncodeYAMLToCBOR accepts,
// resolves each path to a SID query, and returns one query per entry (or
// just the first, per EncodeOptions.AllowMultiQuery).
func ExtractSidQueries(yamlText []byte, tables *Tables, opts EncodeOptions) ([]interface{}, error) {
	entries, err := parseOperatorYAML(yamlText)
	if err != nil {
		return nil, err
	}
	return extractSidQueries(entries, tables, opts)
}
