package odata

// ServiceDocument lists the entity sets and function imports of the model.
func (m *Model) ServiceDocument(base string) ([]byte, error) {
	s := json.BorrowStream(nil)
	defer json.ReturnStream(s)

	s.WriteObjectStart()
	s.WriteObjectField("@odata.context")
	s.WriteString(base + "/$metadata")
	s.WriteMore()
	s.WriteObjectField("value")
	s.WriteArrayStart()
	first := true
	entry := func(name, kind string) {
		if !first {
			s.WriteMore()
		}
		first = false
		s.WriteObjectStart()
		s.WriteObjectField("name")
		s.WriteString(name)
		s.WriteMore()
		s.WriteObjectField("kind")
		s.WriteString(kind)
		s.WriteMore()
		s.WriteObjectField("url")
		s.WriteString(name)
		s.WriteObjectEnd()
	}
	for _, set := range m.Sets {
		entry(set.Name, "EntitySet")
	}
	for _, fn := range m.Functions {
		entry(fn.Name, "FunctionImport")
	}
	s.WriteArrayEnd()
	s.WriteObjectEnd()
	if s.Error != nil {
		return nil, s.Error
	}
	return append([]byte(nil), s.Buffer()...), nil
}

const containerName = "Container"

// Metadata renders the model as a CSDL JSON document.
func (m *Model) Metadata(version string) ([]byte, error) {
	s := json.BorrowStream(nil)
	defer json.ReturnStream(s)
	ns := m.Namespace

	s.WriteObjectStart()
	s.WriteObjectField("$Version")
	s.WriteString(version)
	s.WriteMore()
	s.WriteObjectField("$EntityContainer")
	s.WriteString(ns + "." + containerName)
	s.WriteMore()
	s.WriteObjectField(ns)
	s.WriteObjectStart()

	members := 0
	member := func(name string) {
		if members > 0 {
			s.WriteMore()
		}
		members++
		s.WriteObjectField(name)
	}
	for _, et := range m.Types {
		member(et.Name)
		s.WriteObjectStart()
		s.WriteObjectField("$Kind")
		s.WriteString("EntityType")
		if et.Key != "" {
			s.WriteMore()
			s.WriteObjectField("$Key")
			s.WriteArrayStart()
			s.WriteString(et.Key)
			s.WriteArrayEnd()
		}
		for _, p := range et.Properties {
			s.WriteMore()
			s.WriteObjectField(p.Name)
			s.WriteObjectStart()
			s.WriteObjectField("$Type")
			s.WriteString(string(p.Type))
			if p.Nullable {
				s.WriteMore()
				s.WriteObjectField("$Nullable")
				s.WriteBool(true)
			}
			s.WriteObjectEnd()
		}
		for _, nav := range et.Navigations {
			s.WriteMore()
			s.WriteObjectField(nav.Name)
			s.WriteObjectStart()
			s.WriteObjectField("$Kind")
			s.WriteString("NavigationProperty")
			s.WriteMore()
			s.WriteObjectField("$Collection")
			s.WriteBool(true)
			s.WriteMore()
			s.WriteObjectField("$Type")
			s.WriteString(ns + "." + nav.Target)
			s.WriteObjectEnd()
		}
		s.WriteObjectEnd()
	}

	for _, fn := range m.Functions {
		member(fn.Name)
		s.WriteArrayStart()
		s.WriteObjectStart()
		s.WriteObjectField("$Kind")
		s.WriteString("Function")
		s.WriteMore()
		s.WriteObjectField("$ReturnType")
		s.WriteObjectStart()
		s.WriteObjectField("$Type")
		s.WriteString(string(fn.ReturnType))
		s.WriteObjectEnd()
		s.WriteObjectEnd()
		s.WriteArrayEnd()
	}

	member(containerName)
	s.WriteObjectStart()
	s.WriteObjectField("$Kind")
	s.WriteString("EntityContainer")
	for _, set := range m.Sets {
		s.WriteMore()
		s.WriteObjectField(set.Name)
		s.WriteObjectStart()
		s.WriteObjectField("$Collection")
		s.WriteBool(true)
		s.WriteMore()
		s.WriteObjectField("$Type")
		s.WriteString(ns + "." + set.EntityType.Name)
		s.WriteObjectEnd()
	}
	for _, fn := range m.Functions {
		s.WriteMore()
		s.WriteObjectField(fn.Name)
		s.WriteObjectStart()
		s.WriteObjectField("$Function")
		s.WriteString(ns + "." + fn.Name)
		s.WriteObjectEnd()
	}
	s.WriteObjectEnd()

	s.WriteObjectEnd()
	s.WriteObjectEnd()
	if s.Error != nil {
		return nil, s.Error
	}
	return append([]byte(nil), s.Buffer()...), nil
}
