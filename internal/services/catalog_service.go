package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"gridmenu/internal/models"
	"gridmenu/internal/resources"
)

// CatalogFileName is the index file listing every menu.
const CatalogFileName = "core_menus.csv"

// MenusDirName is the directory holding per-menu item-definition files.
const MenusDirName = "menus"

// catalogColumns are the required index-file columns.
var catalogColumns = []string{"menu_id", "menu_name", "open_condition", "permission", "escapeable"}

// catalogSnapshot is one immutable catalog generation. Load builds a new
// snapshot and swaps it in whole; in-flight readers keep the old one.
type catalogSnapshot struct {
	menus      map[string]*models.MenuDefinition
	items      map[string][]models.MenuItemDefinition // menuID -> file-order definitions
	errors     []string
	generation int64
}

// CatalogService owns menu definition loading and validation. It parses
// the catalog index plus one item-definition file per menu (.csv or
// .xlsx), collects non-fatal validation errors, and exposes an atomically
// replaced snapshot of validated definitions.
type CatalogService struct {
	dataDir       string
	containerSize int
	perms         *PermissionService

	mu       sync.RWMutex
	snapshot *catalogSnapshot
}

// NewCatalogService creates a catalog service rooted at dataDir. The menus
// subdirectory is created and default definition files are copied in from
// the embedded resources when missing.
func NewCatalogService(dataDir string, containerSize int, perms *PermissionService) (*CatalogService, error) {
	s := &CatalogService{
		dataDir:       dataDir,
		containerSize: containerSize,
		perms:         perms,
		snapshot:      &catalogSnapshot{menus: map[string]*models.MenuDefinition{}, items: map[string][]models.MenuItemDefinition{}},
	}

	if err := os.MkdirAll(s.menusDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create menus directory: %w", err)
	}
	if err := s.copyDefaultFiles(false); err != nil {
		log.Printf("⚠️  Failed to create default menu files: %v", err)
	}
	return s, nil
}

func (s *CatalogService) catalogPath() string { return filepath.Join(s.dataDir, CatalogFileName) }
func (s *CatalogService) menusDir() string    { return filepath.Join(s.dataDir, MenusDirName) }

// ContainerSize returns the fixed slotted-container size menus render into.
func (s *CatalogService) ContainerSize() int { return s.containerSize }

// Load re-reads the catalog from disk and atomically replaces the current
// snapshot. It returns the new menu mapping and the list of non-fatal
// validation errors. An unparsable index file is fatal: the previous
// snapshot is retained and the returned mapping is empty.
func (s *CatalogService) Load() (map[string]*models.MenuDefinition, []string) {
	menus, fatalErr := s.loadIndex()
	if fatalErr != nil {
		log.Printf("❌ Catalog load failed: %v", fatalErr)
		return map[string]*models.MenuDefinition{}, []string{fatalErr.Error()}
	}

	next := &catalogSnapshot{
		menus: make(map[string]*models.MenuDefinition, len(menus)),
		items: make(map[string][]models.MenuItemDefinition, len(menus)),
	}

	// Orphaned item files: present on disk, absent from the index.
	for _, name := range s.listItemFiles() {
		menuID := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := menus[menuID]; !ok {
			msg := fmt.Sprintf("Menu file %s exists but is not defined in %s. Skipping.", name, CatalogFileName)
			log.Printf("⚠️  %s", msg)
			next.errors = append(next.errors, msg)
		}
	}

	for _, def := range menus {
		path, err := s.findItemFile(def.MenuID)
		if err != nil {
			msg := fmt.Sprintf("Menu %s has no item-definition file: %v", def.MenuID, err)
			log.Printf("⚠️  %s", msg)
			next.errors = append(next.errors, msg)
			continue
		}

		items, err := s.loadItemFile(path)
		if err != nil {
			msg := fmt.Sprintf("Menu file %s: %v", filepath.Base(path), err)
			log.Printf("⚠️  %s", msg)
			next.errors = append(next.errors, msg)
			continue
		}

		def.ItemSource = path
		next.menus[def.MenuID] = def
		next.items[def.MenuID] = items
		log.Printf("📋 Registered menu: %s (%d item definitions)", def.MenuID, len(items))
	}

	s.mu.Lock()
	next.generation = s.snapshot.generation + 1
	s.snapshot = next
	s.mu.Unlock()

	if len(next.errors) == 0 {
		log.Printf("✅ Loaded %d menus from configuration. All menu files are valid.", len(next.menus))
	} else {
		log.Printf("⚠️  Loaded %d menus with %d validation errors", len(next.menus), len(next.errors))
	}
	return next.menus, next.errors
}

// loadIndex parses the catalog index file. Any structural problem with the
// index is fatal for the whole load.
func (s *CatalogService) loadIndex() (map[string]*models.MenuDefinition, error) {
	header, rows, err := readTable(s.catalogPath())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CatalogFileName, err)
	}

	cols, err := columnIndex(header, catalogColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CatalogFileName, err)
	}

	menus := make(map[string]*models.MenuDefinition, len(rows))
	for i, row := range rows {
		menuID := cell(row, cols["menu_id"])
		if menuID == "" {
			return nil, fmt.Errorf("failed to parse %s: row %d has an empty menu_id", CatalogFileName, i+2)
		}

		permission := cell(row, cols["permission"])
		def := &models.MenuDefinition{
			MenuID:        menuID,
			DisplayName:   TranslateColorCodes(cell(row, cols["menu_name"])),
			OpenCondition: cell(row, cols["open_condition"]),
			Permission:    permission,
			Escapeable:    strings.EqualFold(cell(row, cols["escapeable"]), "true"),
		}
		menus[menuID] = def

		// Plain permission names are registered up front so they exist
		// before the first open attempt. Condition-style entries (%...%)
		// are evaluated, not registered.
		if permission != "" && !strings.HasPrefix(permission, "%") {
			s.perms.Ensure(permission)
		}
	}
	return menus, nil
}

// loadItemFile parses and validates one item-definition file. The returned
// definitions preserve file order, which breaks priority ties.
func (s *CatalogService) loadItemFile(path string) ([]models.MenuItemDefinition, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	cols, err := columnIndex(header, []string{"slot", "material"})
	if err != nil {
		return nil, fmt.Errorf("missing required columns (slot, material)")
	}
	optional := optionalColumnIndex(header, []string{"amount", "name", "lore", "command", "priority", "show_condition"})

	var items []models.MenuItemDefinition
	for _, row := range rows {
		slot, err := strconv.Atoi(cell(row, cols["slot"]))
		if err != nil || slot < 0 || slot >= s.containerSize {
			// Malformed rows are skipped silently, not counted as errors.
			continue
		}
		material := cell(row, cols["material"])
		if material == "" {
			continue
		}

		amount := 1
		if v := cell(row, optional["amount"]); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				amount = n
			}
		}
		priority := 0
		if v := cell(row, optional["priority"]); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				priority = n
			}
		}

		var lore []string
		if v := cell(row, optional["lore"]); v != "" {
			for _, line := range strings.Split(v, "|") {
				lore = append(lore, TranslateColorCodes(line))
			}
		}

		showCondition := cell(row, optional["show_condition"])
		s.registerConditionPermissions(showCondition)

		items = append(items, models.MenuItemDefinition{
			Slot: slot,
			Template: models.ItemTemplate{
				Material: strings.ToUpper(material),
				Amount:   amount,
				Name:     TranslateColorCodes(cell(row, optional["name"])),
				Lore:     lore,
			},
			ActionCommand: cell(row, optional["command"]),
			Priority:      priority,
			ShowCondition: showCondition,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("does not contain any valid menu items")
	}
	return items, nil
}

// registerConditionPermissions pre-registers permissions referenced by a
// show condition so the check never registers on the hot resolution path.
func (s *CatalogService) registerConditionPermissions(condition string) {
	rest := condition
	for {
		start := strings.Index(rest, "%"+permissionTokenPrefix)
		if start < 0 {
			return
		}
		rest = rest[start+1+len(permissionTokenPrefix):]
		end := strings.IndexByte(rest, '%')
		if end < 0 {
			return
		}
		if perm := rest[:end]; perm != "" {
			s.perms.Ensure(perm)
		}
		rest = rest[end+1:]
	}
}

// GetMenu returns a menu definition from the current snapshot.
func (s *CatalogService) GetMenu(menuID string) (*models.MenuDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.snapshot.menus[menuID]
	return def, ok
}

// Menus returns every validated menu definition, sorted by id.
func (s *CatalogService) Menus() []*models.MenuDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	menus := make([]*models.MenuDefinition, 0, len(s.snapshot.menus))
	for _, def := range s.snapshot.menus {
		menus = append(menus, def)
	}
	sort.Slice(menus, func(i, j int) bool { return menus[i].MenuID < menus[j].MenuID })
	return menus
}

// CandidatesBySlot groups a menu's item definitions by slot, preserving
// file order within each slot.
func (s *CatalogService) CandidatesBySlot(menuID string) map[int][]models.MenuItemDefinition {
	s.mu.RLock()
	items := s.snapshot.items[menuID]
	s.mu.RUnlock()

	if len(items) == 0 {
		return nil
	}
	bySlot := make(map[int][]models.MenuItemDefinition)
	for _, item := range items {
		bySlot[item.Slot] = append(bySlot[item.Slot], item)
	}
	return bySlot
}

// ValidationErrors returns the non-fatal errors from the last load.
func (s *CatalogService) ValidationErrors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.snapshot.errors...)
}

// Generation returns the current catalog generation counter.
func (s *CatalogService) Generation() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.generation
}

// ForceReload overwrites the on-disk definition files with the embedded
// defaults and reloads the catalog.
func (s *CatalogService) ForceReload() (map[string]*models.MenuDefinition, []string, error) {
	if err := s.copyDefaultFiles(true); err != nil {
		return nil, nil, fmt.Errorf("failed to restore default menu files: %w", err)
	}
	log.Println("♻️  Restored default menu files from embedded resources")
	menus, errs := s.Load()
	return menus, errs, nil
}

// copyDefaultFiles copies the embedded default catalog and menu files into
// the data directory. With overwrite false, existing files are kept.
func (s *CatalogService) copyDefaultFiles(overwrite bool) error {
	write := func(rel string, data []byte) error {
		dst := filepath.Join(s.dataDir, rel)
		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				return nil
			}
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
		log.Printf("📄 Created default menu file: %s", rel)
		return nil
	}

	for rel, data := range resources.DefaultFiles() {
		if err := write(rel, data); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
	}
	return nil
}

// listItemFiles returns the base names of item-definition files on disk.
func (s *CatalogService) listItemFiles() []string {
	entries, err := os.ReadDir(s.menusDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// findItemFile locates a menu's item-definition file by naming convention:
// menus/<menu_id>.csv, falling back to .xlsx.
func (s *CatalogService) findItemFile(menuID string) (string, error) {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(s.menusDir(), menuID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s.csv or %s.xlsx in %s", menuID, menuID, MenusDirName)
}

// readTable reads a .csv or .xlsx file as a header row plus data rows.
func readTable(path string) (header []string, rows [][]string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	default:
		return readCSV(path)
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var all [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		all = append(all, record)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}
	return all[0], all[1:], nil
}

// readXLSX reads the first sheet of a workbook via excelize.
func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("sheet is empty")
	}
	return all[0], all[1:], nil
}

// columnIndex maps required column names (case-insensitive, trimmed) to
// their positions, erroring on any missing column.
func columnIndex(header []string, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make(map[string]int, len(required))
	for _, name := range required {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[name] = pos
	}
	return cols, nil
}

// optionalColumnIndex maps optional column names to positions, using -1
// for absent columns.
func optionalColumnIndex(header []string, names []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make(map[string]int, len(names))
	for _, name := range names {
		if pos, ok := idx[name]; ok {
			cols[name] = pos
		} else {
			cols[name] = -1
		}
	}
	return cols
}

// cell returns a trimmed cell value, tolerating short rows and -1 columns.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
