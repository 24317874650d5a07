package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	_, err := CopyFileMode(src, dst, 0o644, nil)
	return err
}

// CopyFileMode streams src to dst, setting the given file mode on dst. Bytes
// are mirrored to progress when it is non-nil.
func CopyFileMode(src, dst string, mode os.FileMode, progress io.Writer) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var w io.Writer = out
	if progress != nil {
		w = io.MultiWriter(out, progress)
	}
	written, err := io.Copy(w, in)
	if err != nil {
		return written, err
	}
	return written, out.Close()
}

// TreeSize returns the total size of regular files below root. Symlinks are
// not followed.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// CopyTree recursively copies the directory src to dst, which must not exist.
// Directory and file permissions are preserved and nested symlinks are
// recreated verbatim rather than followed. src itself may be a symlink to a
// directory. It returns the number of file bytes written.
func CopyTree(src, dst string, progress io.Writer) (int64, error) {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", src, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return 0, fmt.Errorf("%s: %w", dst, fs.ErrExist)
	}

	var total int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, entryInfo.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			n, err := CopyFileMode(path, target, entryInfo.Mode().Perm(), progress)
			total += n
			if err != nil {
				return fmt.Errorf("copy %s: %w", path, err)
			}
			return nil
		default:
			// Sockets, devices, and pipes have no place in a media folder.
			return nil
		}
	})
	if err != nil {
		return total, err
	}
	return total, restoreDirModes(root, dst)
}

// restoreDirModes reapplies source directory permissions after the copy so
// read-only directories do not block writing their children.
func restoreDirModes(root, dst string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return os.Chmod(filepath.Join(dst, rel), info.Mode().Perm())
	})
}
