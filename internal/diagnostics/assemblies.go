package diagnostics

import (
	"context"
	"debug/buildinfo"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"telemetry/internal/types"
)

var sharedLibraryExts = map[string]bool{".so": true, ".dll": true, ".dylib": true, ".exe": true}

// soVersion matches the numeric suffix of names like libpq.so.5.16.
var soVersion = regexp.MustCompile(`\.so((?:\.\d+)+)$`)

// SiblingAssemblyFilePaths lists the shared libraries and executables in
// the directory holding path, excluding path itself. Results are sorted.
func SiblingAssemblyFilePaths(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if full == abs {
			continue
		}
		if isBinary(e) {
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isBinary(e os.DirEntry) bool {
	name := e.Name()
	if sharedLibraryExts[strings.ToLower(filepath.Ext(name))] || soVersion.MatchString(name) {
		return true
	}
	info, err := e.Info()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// DescribeAssembly reads what can be known about the binary at path. Go
// binaries report their module version and toolchain; shared objects report
// the numeric suffix of their file name.
func DescribeAssembly(path string) types.AssemblyDetails {
	details := types.AssemblyDetails{Name: filepath.Base(path), FilePath: path}

	if bi, err := buildinfo.ReadFile(path); err == nil {
		details.FrameworkVersion = bi.GoVersion
		details.Version = ParseVersion(bi.Main.Version)
		return details
	}
	if m := soVersion.FindStringSubmatch(details.Name); m != nil {
		details.Version = ParseVersion(m[1])
	}
	return details
}

// ParseVersion reads up to four dot-separated numbers, ignoring a leading
// "v" or "." and anything from the first non-numeric part on. Missing parts
// are zero.
func ParseVersion(s string) types.AssemblyVersion {
	s = strings.TrimLeft(s, "v.")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}

	var parts [4]int
	for i, field := range strings.SplitN(s, ".", 4) {
		n, err := strconv.Atoi(field)
		if err != nil {
			break
		}
		parts[i] = n
	}
	return types.AssemblyVersion{Major: parts[0], Minor: parts[1], Build: parts[2], Revision: parts[3]}
}

func lookupFQDN(ctx context.Context, hostname string) (string, error) {
	if strings.Contains(hostname, ".") {
		return hostname, nil
	}
	cname, err := net.DefaultResolver.LookupCNAME(ctx, hostname)
	if err != nil {
		return "", err
	}
	cname = strings.TrimSuffix(cname, ".")
	if cname == hostname || !strings.Contains(cname, ".") {
		return "", nil
	}
	return cname, nil
}
